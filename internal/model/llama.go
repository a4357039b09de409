//go:build llama

package model

import (
	"errors"

	llama "github.com/go-skynet/go-llama.cpp"
)

// Llama completes every request as a prompt with an in-process llama.cpp model.
type Llama struct {
	params llamaParams
	model  *llama.LLama
}

// NewLlama returns an uninitialized llama model.
func NewLlama() Model { return &Llama{} }

func (m *Llama) Initialize(params map[string]string) error {
	p, err := parseLlamaParams(params)
	if err != nil {
		return err
	}
	opts := []llama.ModelOption{}
	if p.ContextSize > 0 {
		opts = append(opts, llama.SetContext(p.ContextSize))
	}
	lm, err := llama.New(p.ModelPath, opts...)
	if err != nil {
		return err
	}
	m.params = p
	m.model = lm
	return nil
}

// RunInference runs the prompts one after another; the whole batch fails on
// the first error.
func (m *Llama) RunInference(requests []string) ([]string, error) {
	if m.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	po := predictOptions(m.params)
	out := make([]string, len(requests))
	for i, prompt := range requests {
		text, err := m.model.Predict(prompt, po...)
		if err != nil {
			return nil, err
		}
		out[i] = text
	}
	return out, nil
}

func (m *Llama) Close() error {
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts the parameters into go-llama.cpp options.
func predictOptions(p llamaParams) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(zn(p.MaxTokens, 128)),
		llama.SetThreads(zn(p.Threads, 1)),
		llama.SetTopP(zf(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(p.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(p.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(p.Penalty, llama.DefaultOptions.Penalty)),
	}
	if p.Seed != 0 {
		po = append(po, llama.SetSeed(p.Seed))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}
