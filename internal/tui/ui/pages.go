package ui

import "github.com/rivo/tview"

// Pages is a stack of named components on top of tview.Pages. Only the top of
// the stack is visible.
type Pages struct {
	*tview.Pages
	components map[string]Component
	stack      []string
	onChange   func(stack []Component)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{
		Pages:      tview.NewPages(),
		components: make(map[string]Component),
	}
}

// Add registers c under name, hidden.
func (p *Pages) Add(name string, c Component) {
	p.components[name] = c
	p.AddPage(name, c, true, false)
}

// SetOnChange sets a callback that fires after every stack change.
func (p *Pages) SetOnChange(fn func(stack []Component)) {
	p.onChange = fn
}

// Push shows name on top of the stack. Pushing the current top is a no-op.
func (p *Pages) Push(name string) {
	if p.Current() == name {
		return
	}
	if top := p.Current(); top != "" {
		p.HidePage(top)
	}
	p.stack = append(p.stack, name)
	p.reveal(name)
}

// Pop removes the top page and reveals the one below. It returns the popped
// name, or "" when the stack is empty.
func (p *Pages) Pop() string {
	if len(p.stack) == 0 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(top)
	p.stack = p.stack[:len(p.stack)-1]
	if cur := p.Current(); cur != "" {
		p.reveal(cur)
	} else {
		p.notify()
	}
	return top
}

// Reset replaces the whole stack with name.
func (p *Pages) Reset(name string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{name}
	p.reveal(name)
}

func (p *Pages) reveal(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
	p.notify()
}

// Current returns the name of the top page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Top returns the component on top of the stack, or nil.
func (p *Pages) Top() Component {
	return p.components[p.Current()]
}

// Stack returns a copy of the page names, bottom first.
func (p *Pages) Stack() []string {
	return append([]string(nil), p.stack...)
}

// Depth returns the current stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}

func (p *Pages) notify() {
	if p.onChange == nil {
		return
	}
	comps := make([]Component, 0, len(p.stack))
	for _, n := range p.stack {
		comps = append(comps, p.components[n])
	}
	p.onChange(comps)
}
