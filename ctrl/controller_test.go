package ctrl

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

var _ = Describe("Controller", func() {
	var (
		mockCtrl   *gomock.Controller
		clock      *stepClock
		scheduler  *Scheduler
		controller *Controller
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		clock = newStepClock()
		scheduler = NewScheduler(clock, 50*time.Millisecond)
		controller = NewController(scheduler)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should initialize a component before its first update", func() {
		comp := NewMockComponent(mockCtrl)
		comp.EXPECT().Name().Return("sensor").AnyTimes()
		initCall := comp.EXPECT().Init().Return(nil)
		comp.EXPECT().Update().After(initCall).Times(2)

		Expect(controller.AddComponent(comp, 50*time.Millisecond)).
			To(Succeed())
		Expect(controller.Run(context.Background(), 2)).To(Succeed())
	})

	It("should not schedule a component whose Init fails", func() {
		comp := NewMockComponent(mockCtrl)
		comp.EXPECT().Name().Return("sensor").AnyTimes()
		comp.EXPECT().Init().Return(errors.New("sensor not attached"))

		err := controller.AddComponent(comp, 50*time.Millisecond)
		Expect(err).To(MatchError(ContainSubstring("sensor not attached")))
		Expect(controller.Components()).To(BeEmpty())

		Expect(controller.Run(context.Background(), 2)).To(Succeed())
	})

	It("should not schedule a component whose Init panics", func() {
		comp := NewMockComponent(mockCtrl)
		comp.EXPECT().Name().Return("sensor").AnyTimes()
		comp.EXPECT().Init().DoAndReturn(func() error {
			panic("register access fault")
		})

		err := controller.AddComponent(comp, 50*time.Millisecond)
		Expect(err).To(MatchError(ContainSubstring("panic during init")))
		Expect(controller.Components()).To(BeEmpty())
	})

	It("should isolate one component's init failure from the rest", func() {
		good := NewMockComponent(mockCtrl)
		good.EXPECT().Name().Return("good").AnyTimes()
		good.EXPECT().Init().Return(nil)
		good.EXPECT().Update().Times(1)

		bad := NewMockComponent(mockCtrl)
		bad.EXPECT().Name().Return("bad").AnyTimes()
		bad.EXPECT().Init().Return(errors.New("dead on arrival"))

		Expect(controller.AddComponent(good, 50*time.Millisecond)).
			To(Succeed())
		Expect(controller.AddComponent(bad, 50*time.Millisecond)).
			ToNot(Succeed())

		Expect(controller.Run(context.Background(), 1)).To(Succeed())
		Expect(controller.Components()).To(HaveLen(1))
	})

	It("should reject a duplicated component name without initializing", func() {
		comp1 := NewMockComponent(mockCtrl)
		comp1.EXPECT().Name().Return("sensor").AnyTimes()
		comp1.EXPECT().Init().Return(nil)

		comp2 := NewMockComponent(mockCtrl)
		comp2.EXPECT().Name().Return("sensor").AnyTimes()

		Expect(controller.AddComponent(comp1, time.Second)).To(Succeed())
		Expect(controller.AddComponent(comp2, time.Second)).
			To(MatchError(ContainSubstring("already registered")))
	})

	It("should poll components in registration order within a tick", func() {
		first := NewMockComponent(mockCtrl)
		first.EXPECT().Name().Return("first").AnyTimes()
		first.EXPECT().Init().Return(nil)

		second := NewMockComponent(mockCtrl)
		second.EXPECT().Name().Return("second").AnyTimes()
		second.EXPECT().Init().Return(nil)

		firstUpdate := first.EXPECT().Update()
		second.EXPECT().Update().After(firstUpdate)

		Expect(controller.AddComponent(first, 50*time.Millisecond)).
			To(Succeed())
		Expect(controller.AddComponent(second, 50*time.Millisecond)).
			To(Succeed())
		Expect(controller.Run(context.Background(), 1)).To(Succeed())
	})

	It("should poll two components with unaligned periods exactly once "+
		"within a short window", func() {
		// 10 cycles at 50ms cover 500ms. Both components are polled on
		// the first tick; the 500ms and 700ms periods both outlast the
		// remainder of the window.
		a := NewMockComponent(mockCtrl)
		a.EXPECT().Name().Return("a").AnyTimes()
		a.EXPECT().Init().Return(nil)
		a.EXPECT().Update().Times(1)

		b := NewMockComponent(mockCtrl)
		b.EXPECT().Name().Return("b").AnyTimes()
		b.EXPECT().Init().Return(nil)
		b.EXPECT().Update().Times(1)

		Expect(controller.AddComponent(a, 500*time.Millisecond)).
			To(Succeed())
		Expect(controller.AddComponent(b, 700*time.Millisecond)).
			To(Succeed())
		Expect(controller.Run(context.Background(), 10)).To(Succeed())
	})

	It("should expose components by name", func() {
		comp := NewMockComponent(mockCtrl)
		comp.EXPECT().Name().Return("sensor").AnyTimes()
		comp.EXPECT().Init().Return(nil)

		Expect(controller.AddComponent(comp, time.Second)).To(Succeed())

		Expect(controller.ComponentByName("sensor")).To(Equal(comp))
		Expect(controller.ComponentByName("unknown")).To(BeNil())
		Expect(controller.Scheduler()).To(Equal(scheduler))
	})
})
