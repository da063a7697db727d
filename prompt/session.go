package prompt

import "sync"

// TokenUsage sums the token counts for the most recent assistant response.
// Compression nodes gate on this to decide whether history needs trimming.
type TokenUsage struct {
	PromptTokens int
	OutputTokens int
	TotalTokens  int
}

// ModelBinding identifies the LLM model currently bound to a run. Write
// sessions can re-bind it (e.g., a compression node might downgrade to a
// cheaper model for summarization).
type ModelBinding struct {
	ID string
}

// Controller owns the current prompt for a single run and guards it with a
// single read/write mutex: any number of readers may hold it concurrently,
// but a writer excludes all readers and other writers. Mutation happens only
// through Write, whose callback sees a private copy of the message slice and
// whose result is published atomically when the callback returns without
// error.
type Controller struct {
	mu               sync.RWMutex
	messages         []Message
	latestTokenUsage TokenUsage
	model            ModelBinding
}

// NewController constructs a Controller with an empty prompt.
func NewController() *Controller {
	return &Controller{}
}

// Read opens a read session and invokes fn with a snapshot of the current
// prompt. Any number of readers may run concurrently with each other, but
// never concurrently with a Write call.
func (c *Controller) Read(fn func(r *Read)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(&Read{messages: c.messages, tokenUsage: c.latestTokenUsage, model: c.model})
}

// Messages returns a copy of the current prompt's messages without needing
// an explicit Read callback. Convenience wrapper around Read.
func (c *Controller) Messages() []Message {
	var out []Message
	c.Read(func(r *Read) { out = r.Messages() })
	return out
}

// Write opens an exclusive write session and invokes fn with a mutable
// buffer seeded from the current prompt. If fn returns nil, the buffer
// (messages, token usage, model binding) is published atomically as the new
// prompt state before Write returns; external observers never see a partial
// mutation. If fn returns an error, the prompt is left unchanged and the
// error is returned to the caller.
func (c *Controller) Write(fn func(w *Write) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]Message, len(c.messages))
	copy(buf, c.messages)
	w := &Write{messages: buf, tokenUsage: c.latestTokenUsage, model: c.model}
	if err := fn(w); err != nil {
		return err
	}
	c.messages = w.messages
	c.latestTokenUsage = w.tokenUsage
	c.model = w.model
	return nil
}

// LatestTokenUsage returns the token usage recorded by the most recent
// write session (typically set right after an LLM response).
func (c *Controller) LatestTokenUsage() TokenUsage {
	var tu TokenUsage
	c.Read(func(r *Read) { tu = r.tokenUsage })
	return tu
}

// Read is an immutable view of the prompt held for the duration of a read
// session. It must not be retained past the Read callback's return.
type Read struct {
	messages   []Message
	tokenUsage TokenUsage
	model      ModelBinding
}

// Messages returns a copy of the observed messages.
func (r *Read) Messages() []Message {
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// TokenUsage returns the token usage observed in this read session.
func (r *Read) TokenUsage() TokenUsage { return r.tokenUsage }

// Model returns the model binding observed in this read session.
func (r *Read) Model() ModelBinding { return r.model }

// Write is the mutable buffer handed to a Write session's callback.
type Write struct {
	messages   []Message
	tokenUsage TokenUsage
	model      ModelBinding
}

// Messages returns a copy of the buffer's current messages.
func (w *Write) Messages() []Message {
	out := make([]Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// RewritePrompt replaces the entire message buffer.
func (w *Write) RewritePrompt(messages []Message) {
	w.messages = append([]Message(nil), messages...)
}

// WithMessages applies fn to the current buffer and replaces it with fn's
// result, enabling transformations expressed as pure functions over the
// message slice (used by history compression policies).
func (w *Write) WithMessages(fn func([]Message) []Message) {
	w.messages = fn(w.Messages())
}

// AppendPrompt appends messages to the end of the buffer.
func (w *Write) AppendPrompt(messages ...Message) {
	w.messages = append(w.messages, messages...)
}

// SetTokenUsage records the token usage to associate with this write, read
// back later via Controller.LatestTokenUsage.
func (w *Write) SetTokenUsage(tu TokenUsage) { w.tokenUsage = tu }

// Model re-binds the current LLM model for this session and all subsequent
// reads until another write session rebinds it again.
func (w *Write) Model(binding ModelBinding) { w.model = binding }
