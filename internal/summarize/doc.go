// Package summarize turns recorded transcripts into summaries and answers
// follow-up questions about them. It sits behind the monitoring HTTP API and
// has no coupling to the live session path.
package summarize
