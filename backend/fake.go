package backend

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

var (
	fakeLetters = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
		"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z"}
	fakeWords = []string{"hello", "thank you", "please", "sorry", "good", "bad", "yes", "no", "name", "help"}
)

// Fake stands in for the recognition backend. With nothing queued it behaves like
// the demo classifier: a random letter with confidence in [0.7, 1.0) or a random
// word with confidence in [0.6, 0.95), biased by the requested mode.
type Fake struct {
	mu          sync.Mutex
	rng         *rand.Rand
	mode        string
	predictions []Prediction
	predErr     error
	modeErr     error
	chatErr     error
	chatDelay   map[string]time.Duration
	chatReply   func(string) string

	predCalls int
	modeCalls []string
	chatCalls []string
	restarts  int
}

func NewFake() *Fake {
	return &Fake{
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5157)),
		mode:      "auto",
		chatDelay: map[string]time.Duration{},
		chatReply: func(msg string) string { return "You said: " + msg },
	}
}

// Queue makes the next Prediction calls return ps in order.
func (f *Fake) Queue(ps ...Prediction) {
	f.mu.Lock()
	f.predictions = append(f.predictions, ps...)
	f.mu.Unlock()
}

func (f *Fake) FailPredictions(err error) {
	f.mu.Lock()
	f.predErr = err
	f.mu.Unlock()
}

func (f *Fake) FailSetMode(err error) {
	f.mu.Lock()
	f.modeErr = err
	f.mu.Unlock()
}

func (f *Fake) FailChat(err error) {
	f.mu.Lock()
	f.chatErr = err
	f.mu.Unlock()
}

// DelayChat holds the reply to message for d.
func (f *Fake) DelayChat(message string, d time.Duration) {
	f.mu.Lock()
	f.chatDelay[message] = d
	f.mu.Unlock()
}

func (f *Fake) ReplyWith(fn func(string) string) {
	f.mu.Lock()
	f.chatReply = fn
	f.mu.Unlock()
}

func (f *Fake) Prediction(ctx context.Context) (Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.predCalls++
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	if f.predErr != nil {
		return Prediction{}, f.predErr
	}
	if len(f.predictions) > 0 {
		p := f.predictions[0]
		f.predictions = f.predictions[1:]
		return p, nil
	}
	return f.randomPrediction(), nil
}

func (f *Fake) randomPrediction() Prediction {
	dynamic := f.rng.IntN(4) == 0
	switch f.mode {
	case "static":
		dynamic = false
	case "dynamic":
		dynamic = true
	}
	if dynamic {
		return Prediction{
			Type:       KindDynamic,
			Text:       fakeWords[f.rng.IntN(len(fakeWords))],
			Confidence: 0.6 + f.rng.Float64()*0.35,
		}
	}
	return Prediction{
		Type:       KindStatic,
		Text:       fakeLetters[f.rng.IntN(len(fakeLetters))],
		Confidence: 0.7 + f.rng.Float64()*0.3,
	}
}

func (f *Fake) SetMode(ctx context.Context, mode string) (Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modeCalls = append(f.modeCalls, mode)
	if f.modeErr != nil {
		return nil, f.modeErr
	}
	f.mode = mode
	return Ack{"status": "success", "mode": mode}, nil
}

func (f *Fake) Chat(ctx context.Context, message string) (string, error) {
	f.mu.Lock()
	f.chatCalls = append(f.chatCalls, message)
	delay := f.chatDelay[message]
	err := f.chatErr
	reply := f.chatReply
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return reply(message), nil
}

// Restart counts capture restarts so the fake can double as the capture source.
func (f *Fake) Restart() error {
	f.mu.Lock()
	f.restarts++
	f.mu.Unlock()
	return nil
}

func (f *Fake) PredictionCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.predCalls
}

func (f *Fake) ModeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.modeCalls...)
}

func (f *Fake) ChatCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chatCalls...)
}

func (f *Fake) Restarts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restarts
}
