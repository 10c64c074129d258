package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"drugscreen/internal/screening"
	"drugscreen/internal/services"
)

const (
	presetColumns = "id, name, referral_type, contacts_json, created_at, updated_at"
	clientColumns = "id, first_name, last_name, email, dob, referral_type, preset_id, additional_recipients_json, medications_json, created_at, updated_at"
	panelColumns  = "id, name, kind, substances_json"
)

// FindClient loads a client by id. A missing client yields services.ErrNotFound.
func (s *Store) FindClient(ctx context.Context, id string) (*Client, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	client, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "find client", "client "+id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("find client: %w", err)
	}
	return client, nil
}

// UpsertClient inserts or replaces a client, assigning an id when empty.
func (s *Store) UpsertClient(ctx context.Context, client *Client) error {
	if client == nil {
		return services.Wrap(services.ErrValidation, "store", "upsert client", "client is nil", nil)
	}
	if strings.TrimSpace(client.FirstName) == "" && strings.TrimSpace(client.LastName) == "" {
		return services.Wrap(services.ErrValidation, "store", "upsert client", "client name is required", nil)
	}
	referral, ok := ParseReferralType(string(client.ReferralType))
	if !ok {
		return services.Wrap(services.ErrValidation, "store", "upsert client", fmt.Sprintf("unknown referral type %q", client.ReferralType), nil)
	}
	client.ReferralType = referral
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	recipients, err := encodeJSON("additional_recipients_json", client.AdditionalRecipients)
	if err != nil {
		return err
	}
	medications, err := encodeJSON("medications_json", client.Medications)
	if err != nil {
		return err
	}
	now := s.timestamp()
	_, err = s.execWithRetry(ctx, `INSERT INTO clients (`+clientColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            first_name = excluded.first_name,
            last_name = excluded.last_name,
            email = excluded.email,
            dob = excluded.dob,
            referral_type = excluded.referral_type,
            preset_id = excluded.preset_id,
            additional_recipients_json = excluded.additional_recipients_json,
            medications_json = excluded.medications_json,
            updated_at = excluded.updated_at`,
		client.ID,
		strings.TrimSpace(client.FirstName),
		strings.TrimSpace(client.LastName),
		nullableString(strings.TrimSpace(client.Email)),
		nullableString(strings.TrimSpace(client.DOB)),
		string(client.ReferralType),
		nullableString(client.PresetID),
		recipients,
		medications,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert client: %w", err)
	}
	return nil
}

// ListClients returns every client ordered by last name.
func (s *Store) ListClients(ctx context.Context) ([]*Client, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+clientColumns+` FROM clients ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func scanClient(scanner rowScanner) (*Client, error) {
	var (
		client                 Client
		email, dob, presetID   sql.NullString
		referral               string
		recipientsRaw, medsRaw string
		createdRaw, updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&client.ID,
		&client.FirstName,
		&client.LastName,
		&email,
		&dob,
		&referral,
		&presetID,
		&recipientsRaw,
		&medsRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	client.Email = email.String
	client.DOB = dob.String
	client.ReferralType = ReferralType(referral)
	client.PresetID = presetID.String
	var err error
	if client.AdditionalRecipients, err = decodeJSON[Contact]("additional_recipients_json", recipientsRaw); err != nil {
		return nil, err
	}
	if client.Medications, err = decodeJSON[screening.Medication]("medications_json", medsRaw); err != nil {
		return nil, err
	}
	client.CreatedAt = parseTimeOrZero(createdRaw)
	client.UpdatedAt = parseTimeOrZero(updatedRaw)
	return &client, nil
}

// FindPreset loads a referral preset by id.
func (s *Store) FindPreset(ctx context.Context, id string) (*ReferralPreset, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+presetColumns+` FROM referral_presets WHERE id = ?`, id)
	var (
		preset                 ReferralPreset
		referral, contactsRaw  string
		createdRaw, updatedRaw sql.NullString
	)
	err := row.Scan(&preset.ID, &preset.Name, &referral, &contactsRaw, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "find preset", "preset "+id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("find preset: %w", err)
	}
	preset.Type = ReferralType(referral)
	if preset.Contacts, err = decodeJSON[Contact]("contacts_json", contactsRaw); err != nil {
		return nil, err
	}
	preset.CreatedAt = parseTimeOrZero(createdRaw)
	preset.UpdatedAt = parseTimeOrZero(updatedRaw)
	return &preset, nil
}

// UpsertPreset inserts or replaces a referral preset, assigning an id when empty.
func (s *Store) UpsertPreset(ctx context.Context, preset *ReferralPreset) error {
	if preset == nil {
		return services.Wrap(services.ErrValidation, "store", "upsert preset", "preset is nil", nil)
	}
	referral, ok := ParseReferralType(string(preset.Type))
	if !ok {
		return services.Wrap(services.ErrValidation, "store", "upsert preset", fmt.Sprintf("unknown referral type %q", preset.Type), nil)
	}
	preset.Type = referral
	if preset.ID == "" {
		preset.ID = uuid.NewString()
	}
	contacts, err := encodeJSON("contacts_json", preset.Contacts)
	if err != nil {
		return err
	}
	now := s.timestamp()
	_, err = s.execWithRetry(ctx, `INSERT INTO referral_presets (`+presetColumns+`)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            referral_type = excluded.referral_type,
            contacts_json = excluded.contacts_json,
            updated_at = excluded.updated_at`,
		preset.ID, strings.TrimSpace(preset.Name), string(preset.Type), contacts, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert preset: %w", err)
	}
	return nil
}

// FindPanel loads a panel by id.
func (s *Store) FindPanel(ctx context.Context, id string) (*screening.Panel, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+panelColumns+` FROM panels WHERE id = ?`, id)
	var (
		panel          screening.Panel
		kind, substRaw string
	)
	err := row.Scan(&panel.ID, &panel.Name, &kind, &substRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "find panel", "panel "+id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("find panel: %w", err)
	}
	panel.Kind = screening.PanelKind(kind)
	if panel.Substances, err = decodeJSON[string]("substances_json", substRaw); err != nil {
		return nil, err
	}
	return &panel, nil
}

// UpsertPanel inserts or replaces a panel definition.
func (s *Store) UpsertPanel(ctx context.Context, panel *screening.Panel) error {
	if panel == nil || strings.TrimSpace(panel.ID) == "" {
		return services.Wrap(services.ErrValidation, "store", "upsert panel", "panel id is required", nil)
	}
	switch panel.Kind {
	case screening.PanelInstant, screening.PanelLab:
	default:
		return services.Wrap(services.ErrValidation, "store", "upsert panel", fmt.Sprintf("unknown panel kind %q", panel.Kind), nil)
	}
	substances, err := encodeJSON("substances_json", panel.Substances)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(ctx, `INSERT INTO panels (`+panelColumns+`)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            kind = excluded.kind,
            substances_json = excluded.substances_json`,
		panel.ID, strings.TrimSpace(panel.Name), string(panel.Kind), substances,
	)
	if err != nil {
		return fmt.Errorf("upsert panel: %w", err)
	}
	return nil
}
