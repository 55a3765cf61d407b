// Package summaryservice turns free text into a short summary through a
// chat-completion model and keeps a log of every request it served.
package summaryservice
