package model

import (
	"encoding/json"
	"time"
)

// DefaultCategory is used when a calendar event carries no category.
const DefaultCategory = "Evento"

// Event is a volunteer calendar entry. Static and live producers emit the
// same shape. Date is YYYY-MM-DD, Time is a display string such as
// "8:00 AM - 12:00 PM", and IsoStart/IsoEnd use the basic format
// YYYYMMDDTHHMMSS.
type Event struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Date        string `json:"date" yaml:"date"`
	Time        string `json:"time" yaml:"time"`
	IsoStart    string `json:"isoStart" yaml:"isoStart"`
	IsoEnd      string `json:"isoEnd" yaml:"isoEnd"`
	Location    string `json:"location" yaml:"location"`
	Category    string `json:"category" yaml:"category"`
	Image       string `json:"image" yaml:"image"`
	Description string `json:"description" yaml:"description"`
}

// CloneEvents returns a copy of events.
func CloneEvents(events []Event) []Event {
	return append(make([]Event, 0, len(events)), events...)
}

// Submission is a participation form entry.
type Submission struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	WhatsApp  string          `json:"whatsapp"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
