package video

import "context"

// SubmitRequest describes one asynchronous video generation job.
type SubmitRequest struct {
	Prompt          string
	DurationSeconds int
}

// Job is the opaque handle returned by Submit and consumed by Poll.
type Job struct {
	Name string
}

// PollResult reports the current state of a job. AssetURL is populated only
// when Done is true.
type PollResult struct {
	Done     bool
	AssetURL string
}

// Generator is the asynchronous video generation contract: submit a job,
// receive a handle immediately, poll the handle until completion.
type Generator interface {
	Submit(ctx context.Context, req SubmitRequest) (*Job, error)
	Poll(ctx context.Context, job *Job) (*PollResult, error)
}
