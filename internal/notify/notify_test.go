package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/uploads"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

func sampleEvent() uploads.UploadedEvent {
	return uploads.UploadedEvent{
		RequestID:  "req-1",
		PropertyID: "prop-1",
		RoomKey:    "kitchen",
		Kind:       uploads.KindRoom,
		Images:     []string{"https://cdn/a.jpg", "https://cdn/b.jpg"},
		UploadedAt: time.Unix(1700000000, 0).UTC(),
	}
}

type stubSink struct {
	name  string
	err   error
	calls atomic.Int32
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Send(ctx context.Context, ev uploads.UploadedEvent) error {
	s.calls.Add(1)
	return s.err
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	ok := &stubSink{name: "ok"}
	bad := &stubSink{name: "bad", err: errors.New("boom")}
	f := NewFanout(logger.Nop(), ok, nil, bad)

	err := f.MissingRoomUploaded(context.Background(), sampleEvent())
	if err == nil || !strings.Contains(err.Error(), "bad: boom") {
		t.Fatalf("expected joined sink error, got %v", err)
	}
	if ok.calls.Load() != 1 || bad.calls.Load() != 1 {
		t.Fatalf("calls ok=%d bad=%d", ok.calls.Load(), bad.calls.Load())
	}
	if got := f.Sinks(); len(got) != 2 {
		t.Fatalf("nil sinks should be dropped: %v", got)
	}
	if err := NewFanout(logger.Nop()).MissingRoomUploaded(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("empty fanout: %v", err)
	}
}

func TestWebhookSinkPostsPayload(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type: %s", r.Header.Get("Content-Type"))
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(WebhookConfig{URL: srv.URL})
	if err := sink.Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for _, k := range []string{"request_id", "property_id", "room_key", "kind", "images"} {
		if _, ok := got[k]; !ok {
			t.Fatalf("payload missing %s: %v", k, got)
		}
	}
	if imgs := got["images"].([]interface{}); len(imgs) != 2 {
		t.Fatalf("images: %v", imgs)
	}
}

func TestWebhookSinkRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(WebhookConfig{URL: srv.URL, MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})
	if err := sink.Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("attempts: %d", hits.Load())
	}
}

func TestWebhookSinkDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	sink := NewWebhookSink(WebhookConfig{URL: srv.URL, MaxAttempts: 4, BaseBackoff: time.Millisecond})
	err := sink.Send(context.Background(), sampleEvent())
	if err == nil || hits.Load() != 1 {
		t.Fatalf("err=%v hits=%d", err, hits.Load())
	}
	if NewWebhookSink(WebhookConfig{}) != nil {
		t.Fatalf("blank url should disable the sink")
	}
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd {
	p.channel = channel
	p.payload, _ = message.([]byte)
	cmd := goredis.NewIntCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisSinkPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewRedisSink(pub, "")
	if err := sink.Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if pub.channel != DefaultRedisChannel {
		t.Fatalf("channel: %s", pub.channel)
	}
	var ev uploads.UploadedEvent
	if err := json.Unmarshal(pub.payload, &ev); err != nil || ev.RequestID != "req-1" || len(ev.Images) != 2 {
		t.Fatalf("payload: %s (%v)", pub.payload, err)
	}

	pub.err = errors.New("redis down")
	if err := sink.Send(context.Background(), sampleEvent()); err == nil {
		t.Fatalf("expected publish error")
	}
}

type fakeStarter struct {
	opts     client.StartWorkflowOptions
	workflow interface{}
	args     []interface{}
}

func (f *fakeStarter) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	f.opts = options
	f.workflow = workflow
	f.args = args
	return nil, nil
}

func TestTemporalSinkStartsWorkflow(t *testing.T) {
	st := &fakeStarter{}
	sink := NewTemporalSink(st, "propvisions", "")
	ev := sampleEvent()
	if err := sink.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if st.workflow != DefaultMissingRoomWorkflow || st.opts.TaskQueue != "propvisions" {
		t.Fatalf("start: %+v %v", st.opts, st.workflow)
	}
	if st.opts.ID != WorkflowID(ev) || !strings.HasPrefix(st.opts.ID, "missing-room-req-1-") {
		t.Fatalf("workflow id: %s", st.opts.ID)
	}
	if len(st.args) != 1 {
		t.Fatalf("args: %v", st.args)
	}
	if NewTemporalSink(nil, "q", "w") != nil {
		t.Fatalf("nil starter should disable the sink")
	}
}
