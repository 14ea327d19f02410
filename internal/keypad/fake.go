package keypad

// FakeScanner is a Scanner fed by the test.
type FakeScanner struct {
	Queue []Event

	// PollError, if set, is returned by Poll.
	PollError error

	Polls int
}

// NewFakeScanner creates an empty FakeScanner.
func NewFakeScanner() *FakeScanner {
	return &FakeScanner{}
}

func (f *FakeScanner) Poll() error {
	f.Polls++
	return f.PollError
}

func (f *FakeScanner) HasEvent() bool {
	return len(f.Queue) > 0
}

func (f *FakeScanner) NextEvent() Event {
	if len(f.Queue) == 0 {
		return Event{Key: NoKey}
	}
	ev := f.Queue[0]
	f.Queue = f.Queue[1:]
	return ev
}

// Press queues a Pressed event for k.
func (f *FakeScanner) Press(k Key) {
	f.Queue = append(f.Queue, Event{Kind: Pressed, Key: k})
}

// Release queues a Released event for k.
func (f *FakeScanner) Release(k Key) {
	f.Queue = append(f.Queue, Event{Kind: Released, Key: k})
}

// Tap queues a press and a release of k.
func (f *FakeScanner) Tap(k Key) {
	f.Press(k)
	f.Release(k)
}
