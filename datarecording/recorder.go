// Package datarecording stores samples collected during a control run into a
// SQLite database. Inserts are batched; the buffered samples are flushed when
// the batch fills up and, through atexit, when the process terminates.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fatih/structs"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
)

// A Recorder is a backend that can record and store samples.
type Recorder interface {
	// CreateTable creates a table shaped after the sample struct.
	CreateTable(tableName string, sample any)

	// InsertSample buffers one sample for a table that already exists.
	InsertSample(tableName string, sample any)

	// ListTables returns the names of all created tables.
	ListTables() []string

	// Flush writes all buffered samples into the database.
	Flush()
}

// NewRecorder creates a Recorder backed by a SQLite database at path. An
// empty path picks a unique run-scoped name.
func NewRecorder(path string) Recorder {
	if path == "" {
		path = "tact_run_" + xid.New().String()
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	r := &sqliteRecorder{
		db:        db,
		batchSize: 1000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { r.Flush() })

	return r
}

// NewRecorderWithDB creates a Recorder on an already opened database. No
// atexit flush is registered; the caller owns the connection.
func NewRecorderWithDB(db *sql.DB) Recorder {
	return &sqliteRecorder{
		db:        db,
		batchSize: 1000,
		tables:    make(map[string]*table),
	}
}

type table struct {
	columns []string
	pending []any
}

type sqliteRecorder struct {
	mu sync.Mutex

	db        *sql.DB
	batchSize int

	tables   map[string]*table
	buffered int
}

func (r *sqliteRecorder) CreateTable(tableName string, sample any) {
	mustBeFlatStruct(sample)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	columns := structs.Names(sample)
	stmt := "CREATE TABLE " + tableName +
		" (\n\t" + strings.Join(columns, ",\n\t") + "\n);"
	r.mustExecute(stmt)

	r.tables[tableName] = &table{columns: columns}
}

func (r *sqliteRecorder) InsertSample(tableName string, sample any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	t.pending = append(t.pending, sample)
	r.buffered++

	if r.buffered >= r.batchSize {
		r.flushLocked()
	}
}

func (r *sqliteRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	return names
}

func (r *sqliteRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushLocked()
}

func (r *sqliteRecorder) flushLocked() {
	if r.buffered == 0 {
		return
	}

	r.mustExecute("BEGIN TRANSACTION")
	defer r.mustExecute("COMMIT TRANSACTION")

	for tableName, t := range r.tables {
		if len(t.pending) == 0 {
			continue
		}

		placeholders := strings.TrimSuffix(
			strings.Repeat("?, ", len(t.columns)), ", ")
		stmt, err := r.db.Prepare("INSERT INTO " + tableName +
			" VALUES (" + placeholders + ")")
		if err != nil {
			panic(err)
		}

		for _, sample := range t.pending {
			if _, err := stmt.Exec(structs.Values(sample)...); err != nil {
				panic(err)
			}
		}

		t.pending = nil
		stmt.Close()
	}

	r.buffered = 0
}

func (r *sqliteRecorder) mustExecute(query string) sql.Result {
	res, err := r.db.Exec(query)
	if err != nil {
		panic(fmt.Sprintf("query: %s\nerror: %v", query, err))
	}

	return res
}

// mustBeFlatStruct rejects sample structs with fields that do not map to a
// SQLite column.
func mustBeFlatStruct(sample any) {
	t := reflect.TypeOf(sample)
	if t.Kind() != reflect.Struct {
		panic("sample must be a struct")
	}

	for i := 0; i < t.NumField(); i++ {
		switch t.Field(i).Type.Kind() {
		case reflect.Bool,
			reflect.Int, reflect.Int8, reflect.Int16,
			reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16,
			reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64,
			reflect.String:
		default:
			panic(fmt.Sprintf("field %s has unsupported type",
				t.Field(i).Name))
		}
	}
}
