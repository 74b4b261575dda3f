package workerpool

// Task is a unit of work. The pool never inspects a task beyond calling
// Run once per queued instance.
type Task interface {
	Run()
}

// TaskFunc adapts a closure to Task.
type TaskFunc func()

// Run calls f.
func (f TaskFunc) Run() { f() }

type funcTask struct {
	fn  func(any)
	arg any
}

func (t funcTask) Run() { t.fn(t.arg) }

// FuncTask pairs a function with the argument it is called with.
func FuncTask(fn func(any), arg any) Task {
	return funcTask{fn: fn, arg: arg}
}
