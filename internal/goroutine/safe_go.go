package goroutine

import (
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/danmainah/resolveit-app/internal/logger"
)

// recoverAndLog перехватывает panic и пишет её в лог вместе со стеком.
func recoverAndLog(where string) {
	if r := recover(); r != nil {
		logger.L().WithFields(logrus.Fields{
			"panic": r,
			"where": where,
			"stack": string(debug.Stack()),
		}).Error("panic in goroutine")
	}
}

// SafeGo запускает горутину с обработкой panic.
func SafeGo(fn func()) {
	go func() {
		defer recoverAndLog("SafeGo")
		fn()
	}()
}

// Tracker запускает фоновые задачи и позволяет дождаться их завершения
// при остановке сервиса.
type Tracker struct {
	wg sync.WaitGroup
}

// Go запускает задачу под учётом трекера.
func (t *Tracker) Go(fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer recoverAndLog("Tracker")
		fn()
	}()
}

// Wait ждёт завершения всех запущенных задач.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
