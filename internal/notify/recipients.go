package notify

import (
	"context"
	"log/slog"
	"strings"

	"drugscreen/internal/logging"
	"drugscreen/internal/services"
	"drugscreen/internal/store"
)

// ClientDirectory is the store surface the resolver reads.
type ClientDirectory interface {
	FindClient(ctx context.Context, id string) (*store.Client, error)
	FindPreset(ctx context.Context, id string) (*store.ReferralPreset, error)
}

// Resolver builds recipient sets from client and referral preset records.
type Resolver struct {
	directory ClientDirectory
	logger    *slog.Logger
}

func NewResolver(directory ClientDirectory, logger *slog.Logger) *Resolver {
	return &Resolver{directory: directory, logger: logging.NewComponentLogger(logger, "recipients")}
}

// Resolve never fails: a client lookup error yields an empty set and an error
// log entry, leaving the caller to decide whether to skip the stage.
func (r *Resolver) Resolve(ctx context.Context, clientID string) RecipientSet {
	logger := logging.WithContext(ctx, r.logger)
	client, err := r.directory.FindClient(ctx, clientID)
	if err != nil {
		logging.ErrorWithContext(logger, "client lookup failed", "recipient_lookup_failed",
			logging.String("client_id", clientID),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the test references an existing client"),
		)
		return RecipientSet{}
	}

	set := RecipientSet{
		ClientName:  client.FullName(),
		ClientDOB:   client.DOB,
		ClientEmail: strings.TrimSpace(client.Email),
		PresetID:    client.PresetID,
	}

	merger := newContactMerger()
	if client.ReferralType == store.ReferralSelf {
		merger.add(store.Contact{Name: set.ClientName, Email: set.ClientEmail})
	}
	if client.PresetID != "" {
		preset, err := r.directory.FindPreset(ctx, client.PresetID)
		if err != nil {
			logging.WarnWithContext(logger, "referral preset lookup failed; using client recipients only", "preset_lookup_failed",
				logging.String("preset_id", client.PresetID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the client's referral preset"),
				logging.String(logging.FieldImpact, "preset contacts will not be notified"),
			)
		} else {
			if preset.Type != client.ReferralType {
				logger.Debug("preset type differs from client referral type",
					logging.String("preset_type", string(preset.Type)),
					logging.String("referral_type", string(client.ReferralType)),
				)
			}
			merger.add(preset.Contacts...)
		}
	}
	merger.add(client.AdditionalRecipients...)
	set.Referrals = merger.contacts()

	logger.Debug("recipients resolved",
		logging.String("referral_type", string(client.ReferralType)),
		logging.Int("referral_count", len(set.Referrals)),
	)
	return set
}

// contactMerger dedupes by lower-cased email, preserving first-seen order and
// the first non-empty display name.
type contactMerger struct {
	index map[string]int
	out   []store.Contact
}

func newContactMerger() *contactMerger {
	return &contactMerger{index: make(map[string]int)}
}

func (m *contactMerger) add(contacts ...store.Contact) {
	for _, c := range contacts {
		email := strings.TrimSpace(c.Email)
		if email == "" {
			continue
		}
		key := strings.ToLower(email)
		name := strings.TrimSpace(c.Name)
		if i, ok := m.index[key]; ok {
			if m.out[i].Name == "" && name != "" {
				m.out[i].Name = name
			}
			continue
		}
		m.index[key] = len(m.out)
		m.out = append(m.out, store.Contact{Name: name, Email: email})
	}
}

func (m *contactMerger) contacts() []store.Contact {
	return m.out
}
