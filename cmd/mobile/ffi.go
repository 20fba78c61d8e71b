// Package main provides the FFI bridge for mobile platforms.
// Build as shared library: libvidsum.so (Android) / vidsum.framework (iOS).
//
// The shell owns the lifecycle: EngineInit once at startup,
// NetworkUpdate on every OS connectivity callback, EngineShutdown on
// teardown. Engine state is observed by polling QueueSnapshot and
// Notifications; there is no push channel across the FFI boundary.
package main

/*
#cgo CFLAGS: -Wall -Wextra
#cgo LDFLAGS: -shared
#include <stdlib.h>
*/
import "C"
import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/hkuo/vidsum/client/internal/api"
	"github.com/hkuo/vidsum/client/internal/engine"
	"github.com/hkuo/vidsum/client/internal/logging"
	"github.com/hkuo/vidsum/client/internal/netwatch"
	"github.com/hkuo/vidsum/client/internal/scheduler"
	"github.com/hkuo/vidsum/client/internal/store"
)

var (
	mu      sync.RWMutex
	svc     *engine.Service
	netSrc  *netwatch.PushSource
	lastErr string
)

// EngineInit opens the local store and starts the sync engine.
// dataDir is the app's writable directory; apiBaseURL is the backend
// origin. Returns 0 on success, -1 on failure (see GetLastError).
//
//export EngineInit
func EngineInit(dataDir, apiBaseURL *C.char) C.int {
	mu.Lock()
	defer mu.Unlock()

	if svc != nil {
		return 0
	}

	logging.Init(os.Stdout, logging.LevelInfo)

	kv, err := store.NewSQLiteStore(C.GoString(dataDir))
	if err != nil {
		setLastError(fmt.Sprintf("Failed to open local store: %v", err))
		return -1
	}

	netSrc = netwatch.NewPushSource()
	s, err := engine.New(engine.Options{
		Store:         kv,
		Remote:        api.NewClient(C.GoString(apiBaseURL), &http.Client{Timeout: 30 * time.Second}),
		NetworkSource: netSrc,
		Tasks:         scheduler.NewTickerScheduler(),
	})
	if err != nil {
		kv.Close()
		setLastError(fmt.Sprintf("Failed to build engine: %v", err))
		return -1
	}
	if err := s.Start(); err != nil {
		kv.Close()
		setLastError(fmt.Sprintf("Failed to start engine: %v", err))
		return -1
	}

	svc = s
	return 0
}

// EngineShutdown stops background work and closes the store.
//
//export EngineShutdown
func EngineShutdown() {
	mu.Lock()
	defer mu.Unlock()

	if svc == nil {
		return
	}
	if err := svc.Close(); err != nil {
		setLastError(fmt.Sprintf("Shutdown error: %v", err))
	}
	svc = nil
	netSrc = nil
}

// GetLastError returns the last error message.
// Returns a C string that must be freed via FreeString.
//
//export GetLastError
func GetLastError() *C.char {
	mu.RLock()
	defer mu.RUnlock()
	return C.CString(lastErr)
}

// FreeString releases a string previously returned across the FFI
// boundary.
//
//export FreeString
func FreeString(s *C.char) {
	C.free(unsafe.Pointer(s))
}

func setLastError(msg string) {
	lastErr = msg
}

// service returns the running engine, recording an error when the
// bridge is not initialized.
func service() *engine.Service {
	mu.RLock()
	s := svc
	mu.RUnlock()
	if s == nil {
		mu.Lock()
		setLastError("Engine not initialized")
		mu.Unlock()
	}
	return s
}

// jsonResult marshals v for the FFI caller; nil on serialization
// failure.
func jsonResult(v interface{}) *C.char {
	data, err := json.Marshal(v)
	if err != nil {
		mu.Lock()
		setLastError(fmt.Sprintf("Failed to serialize: %v", err))
		mu.Unlock()
		return nil
	}
	return C.CString(string(data))
}

func main() {}
