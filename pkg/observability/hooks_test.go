package observability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	e := NoopExportHooks{}
	e.OnCaptureStart(ctx, "clone", 1)
	e.OnCaptureComplete(ctx, "clone", 1, time.Second, nil)
	e.OnEncodeComplete(ctx, 1024, time.Millisecond, nil)
	e.OnRetry(ctx, 1, time.Second, errors.New("capture failed"))
	e.OnDeliver(ctx, "download", "downloaded", time.Second, nil)

	o := NoopObjectURLHooks{}
	o.OnCreate(ctx, "memory", 1024)
	o.OnResolve(ctx, "memory", false)
	o.OnRevoke(ctx, "memory")

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "POST", "/api/v1/export")
	h.OnResponse(ctx, "POST", "/api/v1/export", 200, time.Second)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Export().(NoopExportHooks); !ok {
		t.Error("Export() should return NoopExportHooks by default")
	}
	if _, ok := ObjectURL().(NoopObjectURLHooks); !ok {
		t.Error("ObjectURL() should return NoopObjectURLHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customExport := &testExportHooks{}
	SetExportHooks(customExport)
	if Export() != customExport {
		t.Error("SetExportHooks should set custom hooks")
	}

	customObjectURL := &testObjectURLHooks{}
	SetObjectURLHooks(customObjectURL)
	if ObjectURL() != customObjectURL {
		t.Error("SetObjectURLHooks should set custom hooks")
	}

	Reset()
	if _, ok := Export().(NoopExportHooks); !ok {
		t.Error("Reset() should restore NoopExportHooks")
	}
	if _, ok := ObjectURL().(NoopObjectURLHooks); !ok {
		t.Error("Reset() should restore NoopObjectURLHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testExportHooks{}
	SetExportHooks(custom)
	SetExportHooks(nil)

	if Export() != custom {
		t.Error("SetExportHooks(nil) should not replace registered hooks")
	}
	Reset()
}

func TestConcurrentAccess(t *testing.T) {
	Reset()
	defer Reset()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetExportHooks(&testExportHooks{})
		}()
		go func() {
			defer wg.Done()
			Export().OnCaptureStart(context.Background(), "clone", 1)
		}()
	}
	wg.Wait()
}

type testExportHooks struct {
	NoopExportHooks
	mu       sync.Mutex
	captures int
}

func (h *testExportHooks) OnCaptureStart(context.Context, string, int) {
	h.mu.Lock()
	h.captures++
	h.mu.Unlock()
}

type testObjectURLHooks struct {
	NoopObjectURLHooks
}
