// Package ingestion indexes the frames of a video into the frame index.
//
// The Pipeline type manages one indexing job per video:
//   - Marking the job as processing in the job store
//   - Clearing embeddings left by a previous attempt
//   - Adding every frame with a deterministic record ID, retrying with backoff
//   - Marking the job completed, or failed with the error message
//
// Frames come from a FrameSource, typically the JSON Lines output of the
// external vision pipeline that encodes frames and detects objects.
// Jobs submitted asynchronously run on a bounded worker pool.
package ingestion
