package nakama

import (
	"context"
	"sync"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

// recordingLogger keeps formatted lines per level.
type recordingLogger struct {
	noopLogger
	lines map[string][]string
}

func (l *recordingLogger) add(level, format string, args ...interface{}) {
	if l.lines == nil {
		l.lines = make(map[string][]string)
	}
	if len(args) == 1 {
		if s, ok := args[0].(string); ok && format == "%s" {
			l.lines[level] = append(l.lines[level], s)
			return
		}
	}
	l.lines[level] = append(l.lines[level], format)
}

func (l *recordingLogger) Debug(f string, a ...interface{}) { l.add("debug", f, a...) }
func (l *recordingLogger) Info(f string, a ...interface{})  { l.add("info", f, a...) }
func (l *recordingLogger) Warn(f string, a ...interface{})  { l.add("warn", f, a...) }
func (l *recordingLogger) Error(f string, a ...interface{}) { l.add("error", f, a...) }

type sentMessage struct {
	opCode    int64
	data      []byte
	presences []runtime.Presence
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	sent   []sentMessage
	kicked []runtime.Presence
	labels []string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.sent = append(md.sent, sentMessage{opCode: opCode, data: append([]byte(nil), data...), presences: presences})
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	md.kicked = append(md.kicked, presences...)
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labels = append(md.labels, label)
	return nil
}

// ops lists the op codes sent so far.
func (md *mockDispatcher) ops() []int64 {
	out := make([]int64, 0, len(md.sent))
	for _, m := range md.sent {
		out = append(out, m.opCode)
	}
	return out
}

// last returns the most recent message with opCode.
func (md *mockDispatcher) last(opCode int64) (sentMessage, bool) {
	for i := len(md.sent) - 1; i >= 0; i-- {
		if md.sent[i].opCode == opCode {
			return md.sent[i], true
		}
	}
	return sentMessage{}, false
}

func (md *mockDispatcher) reset() {
	md.sent = nil
	md.kicked = nil
}

// fakePresence overrides the identity getters; other methods are unused.
type fakePresence struct {
	runtime.Presence
	userID    string
	sessionID string
}

func (p fakePresence) GetUserId() string    { return p.userID }
func (p fakePresence) GetSessionId() string { return p.sessionID }
func (p fakePresence) GetUsername() string  { return p.userID }

type fakeData struct {
	runtime.MatchData
	userID    string
	sessionID string
	opCode    int64
	data      []byte
}

func (d fakeData) GetUserId() string    { return d.userID }
func (d fakeData) GetSessionId() string { return d.sessionID }
func (d fakeData) GetOpCode() int64     { return d.opCode }
func (d fakeData) GetData() []byte      { return d.data }

// fakeNakama implements the storage and match calls used by the module.
type fakeNakama struct {
	runtime.NakamaModule

	mu       sync.Mutex
	objects  map[string]string
	writes   int
	readErr  error
	matches  []*api.Match
	created  []string
	signals  []string
	signalFn func(id string) (string, error)
}

func (f *fakeNakama) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []*api.StorageObject
	for _, r := range reads {
		if v, ok := f.objects[r.Collection+"/"+r.Key]; ok {
			out = append(out, &api.StorageObject{Collection: r.Collection, Key: r.Key, Value: v})
		}
	}
	return out, nil
}

func (f *fakeNakama) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string]string)
	}
	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, w := range writes {
		f.objects[w.Collection+"/"+w.Key] = w.Value
		f.writes++
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key})
	}
	return acks, nil
}

func (f *fakeNakama) MatchList(ctx context.Context, limit int, authoritative bool, label string, minSize *int, maxSize *int, query string) ([]*api.Match, error) {
	return f.matches, nil
}

func (f *fakeNakama) MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error) {
	id := "match-" + module
	f.created = append(f.created, id)
	return id, nil
}

func (f *fakeNakama) MatchSignal(ctx context.Context, id string, data string) (string, error) {
	f.signals = append(f.signals, id)
	if f.signalFn != nil {
		return f.signalFn(id)
	}
	return "{}", nil
}

func (f *fakeNakama) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}
