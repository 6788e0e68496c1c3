package starter

import (
	"bytes"
	"log/slog"
	"sync"
)

type fakeProcess struct {
	mu sync.Mutex

	pid          int
	exitCode     int
	waitErr      error
	terminateErr error
	killErr      error
	// when set, Wait blocks until the channel is closed
	hang chan struct{}

	terminateCalls int
	killCalls      int
	waitCalls      int
}

func (p *fakeProcess) Pid() int {
	return p.pid
}

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminateCalls++
	return p.terminateErr
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killCalls++
	if p.killErr != nil {
		return p.killErr
	}
	p.exitCode = -9
	if p.hang != nil {
		close(p.hang)
		p.hang = nil
	}
	return nil
}

func (p *fakeProcess) Wait() (int, error) {
	p.mu.Lock()
	p.waitCalls++
	hang := p.hang
	p.mu.Unlock()

	if hang != nil {
		<-hang
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.waitErr
}

func (p *fakeProcess) counts() (terminate, kill, wait int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminateCalls, p.killCalls, p.waitCalls
}

type fakeSpawner struct {
	err       error
	specs     []SpawnSpec
	processes []*fakeProcess
}

func (s *fakeSpawner) Spawn(spec SpawnSpec) (Process, error) {
	s.specs = append(s.specs, spec)
	if s.err != nil {
		return nil, s.err
	}
	p := &fakeProcess{pid: 1000 + len(s.processes)}
	s.processes = append(s.processes, p)
	return p, nil
}

func (s *fakeSpawner) last() *fakeProcess {
	if len(s.processes) == 0 {
		return nil
	}
	return s.processes[len(s.processes)-1]
}

type recordingNotifier struct {
	list []Notification
}

func (n *recordingNotifier) Notify(msg Notification) {
	n.list = append(n.list, msg)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	spawner  *fakeSpawner
	notifier *recordingNotifier
	logs     *lockedBuffer
}

func newFixture() *fixture {
	return &fixture{
		spawner:  &fakeSpawner{},
		notifier: &recordingNotifier{},
		logs:     &lockedBuffer{},
	}
}

func (f *fixture) options() []Option {
	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return []Option{
		WithSpawner(f.spawner),
		WithNotifier(f.notifier),
		WithLogger(logger),
	}
}

func (f *fixture) supervisor(id string, options ...Option) *Supervisor {
	return New(id, append(f.options(), options...)...)
}
