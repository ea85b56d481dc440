package main

import (
	"fmt"
	"sync"

	"github.com/ethanbaker/coach/pkg/chat"
	"github.com/ethanbaker/coach/pkg/sdk"
)

// printer writes transcript changes to stdout as they stream in
type printer struct {
	mu      sync.Mutex
	printed map[string]int // message id -> bytes of text already printed
}

// render prints whatever part of the transcript has not been printed yet
func (p *printer) render(messages []chat.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.printed == nil {
		p.printed = make(map[string]int)
	}

	for _, m := range messages {
		if m.Speaker == sdk.SpeakerUser {
			continue
		}

		n, seen := p.printed[m.ID]
		if !seen {
			fmt.Printf("\n[%s]: ", m.Speaker)
		}
		if len(m.Text) > n {
			fmt.Print(m.Text[n:])
		}
		p.printed[m.ID] = len(m.Text)
	}
}

// reset forgets what has been printed
func (p *printer) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printed = nil
}
