package search

import "github.com/poiesic/ragline/core"

// Monitor provides hooks to observe answering a question.
type Monitor interface {
	Start(question string)
	AfterRetrieval(results []*core.SearchResult)
	AfterPrompt(prompt string)
	Finish(answer string)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                        {}
func (n *noopMonitor) AfterRetrieval(_ []*core.SearchResult) {}
func (n *noopMonitor) AfterPrompt(_ string)                  {}
func (n *noopMonitor) Finish(_ string)                       {}
