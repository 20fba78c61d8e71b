package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hkuo/vidsum/client/internal/models"
)

// =====================================================
// Network
// =====================================================

// NetworkUpdate forwards an OS connectivity callback to the engine.
// connected/reachable are 0 or 1; transport is e.g. "wifi", "cellular".
//
//export NetworkUpdate
func NetworkUpdate(connected, reachable C.int, transport *C.char) {
	mu.RLock()
	src := netSrc
	mu.RUnlock()
	if src == nil {
		return
	}
	src.SetState(models.NetworkState{
		IsConnected:         connected != 0,
		IsInternetReachable: reachable != 0,
		TransportType:       C.GoString(transport),
	})
}

// NetworkState returns the engine's debounced view of connectivity.
// Returns JSON that must be freed via FreeString.
//
//export NetworkState
func NetworkState() *C.char {
	s := service()
	if s == nil {
		return nil
	}
	return jsonResult(s.NetworkState())
}

// =====================================================
// Queue Operations
// =====================================================

// EnqueueMutation appends a mutation to the durable queue. kind is one
// of create/star/unstar/delete/ask_question; payload is kind-specific
// JSON (may be empty). Returns the stored entry as JSON, or nil.
//
//export EnqueueMutation
func EnqueueMutation(kind, targetID, payload *C.char) *C.char {
	s := service()
	if s == nil {
		return nil
	}

	var raw json.RawMessage
	if p := C.GoString(payload); p != "" {
		raw = json.RawMessage(p)
	}
	entry, err := s.Enqueue(models.MutationKind(C.GoString(kind)), C.GoString(targetID), raw)
	if err != nil {
		mu.Lock()
		setLastError(fmt.Sprintf("Failed to enqueue: %v", err))
		mu.Unlock()
		return nil
	}
	return jsonResult(entry)
}

// DrainQueue runs one drain pass and returns the tally as JSON.
//
//export DrainQueue
func DrainQueue() *C.char {
	s := service()
	if s == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return jsonResult(s.DrainNow(ctx))
}

// QueueSnapshot returns pending count, oldest entry age and the last
// drain result as JSON.
//
//export QueueSnapshot
func QueueSnapshot() *C.char {
	s := service()
	if s == nil {
		return nil
	}
	return jsonResult(s.Snapshot())
}

// ClearQueue discards all pending mutations. Returns 0 on success.
//
//export ClearQueue
func ClearQueue() C.int {
	s := service()
	if s == nil {
		return -1
	}
	if err := s.ClearQueue(); err != nil {
		mu.Lock()
		setLastError(fmt.Sprintf("Failed to clear queue: %v", err))
		mu.Unlock()
		return -1
	}
	return 0
}

// =====================================================
// Cache Operations
// =====================================================

// CacheInfo returns size and last-updated for one namespace
// (summaries/thumbnails/metadata) as JSON.
//
//export CacheInfo
func CacheInfo(namespace *C.char) *C.char {
	s := service()
	if s == nil {
		return nil
	}
	info, err := s.CacheInfo(models.CacheNamespace(C.GoString(namespace)))
	if err != nil {
		mu.Lock()
		setLastError(fmt.Sprintf("Failed to read cache info: %v", err))
		mu.Unlock()
		return nil
	}
	return jsonResult(info)
}

// ClearCache removes every record in one namespace. Returns bytes
// freed, or -1.
//
//export ClearCache
func ClearCache(namespace *C.char) C.longlong {
	s := service()
	if s == nil {
		return -1
	}
	freed, err := s.ClearCacheNamespace(models.CacheNamespace(C.GoString(namespace)))
	if err != nil {
		mu.Lock()
		setLastError(fmt.Sprintf("Failed to clear cache: %v", err))
		mu.Unlock()
		return -1
	}
	return C.longlong(freed)
}

// GetSummary returns a summary by id, from cache when present,
// otherwise fetched from the backend and cached.
//
//export GetSummary
func GetSummary(id *C.char) *C.char {
	s := service()
	if s == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	data, err := s.Summary(ctx, C.GoString(id))
	if err != nil {
		mu.Lock()
		setLastError(fmt.Sprintf("Failed to get summary: %v", err))
		mu.Unlock()
		return nil
	}
	return C.CString(string(data))
}

// =====================================================
// Notifications
// =====================================================

// Notifications returns retained failure notifications as JSON, oldest
// first.
//
//export Notifications
func Notifications() *C.char {
	s := service()
	if s == nil {
		return nil
	}
	list, err := s.Notifications()
	if err != nil {
		mu.Lock()
		setLastError(fmt.Sprintf("Failed to list notifications: %v", err))
		mu.Unlock()
		return nil
	}
	return jsonResult(map[string]interface{}{"notifications": list})
}

// DismissNotification removes one retained notification. Returns 0 on
// success.
//
//export DismissNotification
func DismissNotification(id *C.char) C.int {
	s := service()
	if s == nil {
		return -1
	}
	if err := s.DismissNotification(C.GoString(id)); err != nil {
		mu.Lock()
		setLastError(fmt.Sprintf("Failed to dismiss notification: %v", err))
		mu.Unlock()
		return -1
	}
	return 0
}
