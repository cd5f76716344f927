package ctrl

import (
	"log"

	"github.com/embedlab/tact/hooking"
)

// A TaskLogger is a hook that writes a line for every task invocation and
// every task panic.
type TaskLogger struct {
	*log.Logger
}

// NewTaskLogger returns a TaskLogger that writes into the given logger.
func NewTaskLogger(logger *log.Logger) *TaskLogger {
	h := new(TaskLogger)
	h.Logger = logger

	return h
}

// Func writes the task information into the logger.
func (l *TaskLogger) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosBeforeTask:
		task := ctx.Item.(*Task)
		info := ctx.Detail.(TickInfo)
		l.Printf("tick %d: polling %s", info.Index, task.Name())
	case HookPosTaskError:
		task := ctx.Item.(*Task)
		l.Printf("task %s failed: %v", task.Name(), ctx.Detail)
	}
}
