package filestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SchemaVersion is the layout written by this package.
const SchemaVersion = 2

type document struct {
	SchemaVersion int                 `json:"schema_version"`
	Users         []userRecord        `json:"users"`
	Messages      []messageRecord     `json:"messages"`
	Appointments  []appointmentRecord `json:"appointments"`
	Counters      counters            `json:"counters"`
}

type counters struct {
	Users        int64 `json:"users"`
	Messages     int64 `json:"messages"`
	Appointments int64 `json:"appointments"`
}

type userRecord struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type messageRecord struct {
	ID               int64      `json:"id"`
	ConversationID   string     `json:"conversation_id"`
	UserID           *int64     `json:"user_id"`
	AdminID          *int64     `json:"admin_id"`
	AdminDisplayName string     `json:"admin_display_name,omitempty"`
	VisitorFirstName string     `json:"visitor_first_name"`
	VisitorLastName  string     `json:"visitor_last_name"`
	VisitorEmail     string     `json:"visitor_email"`
	Body             string     `json:"body"`
	Status           string     `json:"status"`
	Deleted          bool       `json:"deleted"`
	ClosedAt         *time.Time `json:"closed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at"`
}

type appointmentRecord struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	StartsAt    time.Time  `json:"starts_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
}

func emptyDocument() *document {
	return &document{
		SchemaVersion: SchemaVersion,
		Users:         []userRecord{},
		Messages:      []messageRecord{},
		Appointments:  []appointmentRecord{},
	}
}

func (d *document) nextUserID() int64 {
	d.Counters.Users++
	return d.Counters.Users
}

func (d *document) nextMessageID() int64 {
	d.Counters.Messages++
	return d.Counters.Messages
}

func (d *document) nextAppointmentID() int64 {
	d.Counters.Appointments++
	return d.Counters.Appointments
}

// decodeDocument parses raw bytes and upgrades older layouts. Empty input is
// an empty document.
func decodeDocument(raw []byte) (*document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return emptyDocument(), nil
	}

	var header struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}

	var doc *document
	switch {
	case header.SchemaVersion == SchemaVersion:
		doc = &document{}
		if err := json.Unmarshal(raw, doc); err != nil {
			return nil, fmt.Errorf("decode store: %w", err)
		}
	case header.SchemaVersion < SchemaVersion:
		legacy, err := upgradeV1(raw)
		if err != nil {
			return nil, err
		}
		doc = legacy
	default:
		return nil, fmt.Errorf("store schema version %d is newer than supported version %d", header.SchemaVersion, SchemaVersion)
	}

	doc.normalize()
	return doc, nil
}

// normalize fills missing collections and repairs counters so that new ids
// never collide with existing rows.
func (d *document) normalize() {
	d.SchemaVersion = SchemaVersion
	if d.Users == nil {
		d.Users = []userRecord{}
	}
	if d.Messages == nil {
		d.Messages = []messageRecord{}
	}
	if d.Appointments == nil {
		d.Appointments = []appointmentRecord{}
	}
	for _, u := range d.Users {
		d.Counters.Users = max(d.Counters.Users, u.ID)
	}
	for i := range d.Messages {
		m := &d.Messages[i]
		d.Counters.Messages = max(d.Counters.Messages, m.ID)
		if m.Status == "" {
			m.Status = "open"
		}
	}
	for _, a := range d.Appointments {
		d.Counters.Appointments = max(d.Counters.Appointments, a.ID)
	}
}

type legacyDocument struct {
	Users   []legacyUser        `json:"users"`
	Chats   []legacyChat        `json:"chats"`
	Termine []legacyAppointment `json:"termine"`
}

type legacyUser struct {
	ID        int64     `json:"id"`
	Vorname   string    `json:"vorname"`
	Nachname  string    `json:"nachname"`
	Email     string    `json:"email"`
	Passwort  string    `json:"passwort"`
	UserTyp   string    `json:"user_typ"`
	CreatedAt time.Time `json:"created_at"`
}

type legacyChat struct {
	ID                   int64      `json:"id"`
	ConversationID       string     `json:"conversation_id"`
	UserID               *int64     `json:"user_id"`
	AdminID              *int64     `json:"admin_id"`
	AdminAnzeigename     string     `json:"admin_anzeigename"`
	VisitorVorname       string     `json:"visitor_vorname"`
	VisitorNachname      string     `json:"visitor_nachname"`
	VisitorEmail         string     `json:"visitor_email"`
	Nachricht            string     `json:"nachricht"`
	ConversationStatus   string     `json:"conversation_status"`
	ConversationDeleted  bool       `json:"conversation_deleted"`
	ConversationClosedAt *time.Time `json:"conversation_closed_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at"`
}

type legacyAppointment struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Datum       string     `json:"datum"`
	Uhrzeit     string     `json:"uhrzeit"`
	TerminZeit  time.Time  `json:"termin_zeit"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
}

var legacyStatuses = map[string]string{
	"offen":          "open",
	"in_bearbeitung": "in_progress",
	"erledigt":       "done",
	"geschlossen":    "closed",
}

func upgradeV1(raw []byte) (*document, error) {
	var legacy legacyDocument
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy store: %w", err)
	}

	doc := emptyDocument()
	for _, u := range legacy.Users {
		role := "applicant"
		if strings.EqualFold(u.UserTyp, "admin") {
			role = "admin"
		}
		doc.Users = append(doc.Users, userRecord{
			ID:           u.ID,
			FirstName:    u.Vorname,
			LastName:     u.Nachname,
			Email:        strings.ToLower(strings.TrimSpace(u.Email)),
			PasswordHash: u.Passwort,
			Role:         role,
			CreatedAt:    u.CreatedAt,
		})
	}
	for _, c := range legacy.Chats {
		status := strings.ToLower(strings.TrimSpace(c.ConversationStatus))
		if mapped, ok := legacyStatuses[status]; ok {
			status = mapped
		}
		doc.Messages = append(doc.Messages, messageRecord{
			ID:               c.ID,
			ConversationID:   c.ConversationID,
			UserID:           c.UserID,
			AdminID:          c.AdminID,
			AdminDisplayName: c.AdminAnzeigename,
			VisitorFirstName: c.VisitorVorname,
			VisitorLastName:  c.VisitorNachname,
			VisitorEmail:     strings.ToLower(strings.TrimSpace(c.VisitorEmail)),
			Body:             c.Nachricht,
			Status:           status,
			Deleted:          c.ConversationDeleted,
			ClosedAt:         c.ConversationClosedAt,
			CreatedAt:        c.CreatedAt,
			UpdatedAt:        c.UpdatedAt,
		})
	}
	for _, t := range legacy.Termine {
		doc.Appointments = append(doc.Appointments, appointmentRecord{
			ID:          t.ID,
			UserID:      t.UserID,
			Name:        t.Name,
			Email:       strings.ToLower(strings.TrimSpace(t.Email)),
			Date:        t.Datum,
			Time:        t.Uhrzeit,
			StartsAt:    t.TerminZeit,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
			CancelledAt: t.CancelledAt,
		})
	}
	return doc, nil
}
