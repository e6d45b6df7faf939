package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/ashureev/persona-lab/internal/domain"
	"github.com/ashureev/persona-lab/internal/shared"
	"github.com/pkg/errors"
)

// Firestore collection names.
const (
	personasCollection      = "personas"
	conversationsCollection = "conversations"
	usersCollection         = "users"
)

// FirestoreStore implements Repository on Cloud Firestore.
// Timestamps of top-level fields are assigned by the server.
type FirestoreStore struct {
	client *firestore.Client
}

type personaDoc struct {
	Name            string    `firestore:"name"`
	Description     string    `firestore:"description"`
	Characteristics []string  `firestore:"characteristics"`
	UserID          string    `firestore:"userId"`
	CreatedAt       time.Time `firestore:"createdAt,serverTimestamp"`
	UpdatedAt       time.Time `firestore:"updatedAt,serverTimestamp"`
}

type messageDoc struct {
	Role      string    `firestore:"role"`
	Content   string    `firestore:"content"`
	Timestamp time.Time `firestore:"timestamp"`
}

type conversationDoc struct {
	UserID    string       `firestore:"userId"`
	PersonaID string       `firestore:"personaId"`
	Messages  []messageDoc `firestore:"messages"`
	CreatedAt time.Time    `firestore:"createdAt,serverTimestamp"`
	UpdatedAt time.Time    `firestore:"updatedAt,serverTimestamp"`
}

// NewFirestore connects to Firestore for projectID using application default
// credentials, or the emulator when FIRESTORE_EMULATOR_HOST is set.
func NewFirestore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "create firestore client")
	}
	return &FirestoreStore{client: client}, nil
}

// Ping performs a minimal read to verify connectivity.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	if _, err := s.client.Collection(personasCollection).Limit(1).Documents(ctx).GetAll(); err != nil {
		return errors.Wrap(err, "ping firestore")
	}
	return nil
}

// Close closes the Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// CreatePersona adds a persona document and reads it back to obtain server timestamps.
func (s *FirestoreStore) CreatePersona(ctx context.Context, p *domain.Persona) (*domain.Persona, error) {
	doc := personaDoc{
		Name:            p.Name,
		Description:     p.Description,
		Characteristics: p.Characteristics,
		UserID:          p.UserID,
	}
	if doc.Characteristics == nil {
		doc.Characteristics = []string{}
	}

	ref, _, err := s.client.Collection(personasCollection).Add(ctx, doc)
	if err != nil {
		return nil, errors.Wrap(err, "add persona")
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read created persona")
	}
	return personaFromSnapshot(snap)
}

// GetPersona retrieves a persona by ID.
func (s *FirestoreStore) GetPersona(ctx context.Context, id string) (*domain.Persona, error) {
	snap, err := s.client.Collection(personasCollection).Doc(id).Get(ctx)
	if shared.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get persona")
	}
	return personaFromSnapshot(snap)
}

// ListPersonas returns the personas owned by userID, newest first.
func (s *FirestoreStore) ListPersonas(ctx context.Context, userID string) ([]*domain.Persona, error) {
	snaps, err := s.client.Collection(personasCollection).
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(err, "query personas")
	}

	personas := make([]*domain.Persona, 0, len(snaps))
	for _, snap := range snaps {
		p, err := personaFromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	return personas, nil
}

// UpdatePersona applies the set fields of upd and refreshes updatedAt.
func (s *FirestoreStore) UpdatePersona(ctx context.Context, id string, upd domain.PersonaUpdate) (*domain.Persona, error) {
	var updates []firestore.Update
	if upd.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: *upd.Name})
	}
	if upd.Description != nil {
		updates = append(updates, firestore.Update{Path: "description", Value: *upd.Description})
	}
	if upd.Characteristics != nil {
		updates = append(updates, firestore.Update{Path: "characteristics", Value: *upd.Characteristics})
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})

	ref := s.client.Collection(personasCollection).Doc(id)
	if _, err := ref.Update(ctx, updates); err != nil {
		if shared.IsNotFoundError(err) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "update persona")
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read updated persona")
	}
	return personaFromSnapshot(snap)
}

// DeletePersona removes a persona document.
func (s *FirestoreStore) DeletePersona(ctx context.Context, id string) error {
	_, err := s.client.Collection(personasCollection).Doc(id).Delete(ctx, firestore.Exists)
	if shared.IsNotFoundError(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "delete persona")
	}
	return nil
}

// CreateConversation adds a conversation document and returns its ID.
// Message timestamps are client-assigned since server timestamps are not
// allowed inside arrays.
func (s *FirestoreStore) CreateConversation(ctx context.Context, c *domain.Conversation) (string, error) {
	doc := conversationDoc{
		UserID:    c.UserID,
		PersonaID: c.PersonaID,
		Messages:  make([]messageDoc, 0, len(c.Messages)),
	}
	for _, m := range c.Messages {
		doc.Messages = append(doc.Messages, messageDoc(m))
	}

	ref, _, err := s.client.Collection(conversationsCollection).Add(ctx, doc)
	if err != nil {
		return "", errors.Wrap(err, "add conversation")
	}
	return ref.ID, nil
}

// ListConversations returns the conversations of userID with personaID, newest first.
// The query needs a composite index; while it builds Firestore answers
// FailedPrecondition, which callers detect with shared.IsIndexBuildingError.
func (s *FirestoreStore) ListConversations(ctx context.Context, userID, personaID string, limit int) ([]*domain.Conversation, error) {
	snaps, err := s.client.Collection(conversationsCollection).
		Where("userId", "==", userID).
		Where("personaId", "==", personaID).
		OrderBy("createdAt", firestore.Desc).
		Limit(normalizeLimit(limit)).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(err, "query conversations")
	}

	conversations := make([]*domain.Conversation, 0, len(snaps))
	for _, snap := range snaps {
		var doc conversationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, errors.Wrapf(err, "decode conversation %s", snap.Ref.ID)
		}
		c := &domain.Conversation{
			ID:        snap.Ref.ID,
			UserID:    doc.UserID,
			PersonaID: doc.PersonaID,
			Messages:  make([]domain.Message, 0, len(doc.Messages)),
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		}
		for _, m := range doc.Messages {
			c.Messages = append(c.Messages, domain.Message(m))
		}
		conversations = append(conversations, c)
	}
	return conversations, nil
}

// GetProfile returns the users/{uid} document.
func (s *FirestoreStore) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	snap, err := s.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if shared.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	return domain.Profile(snap.Data()), nil
}

// MergeProfile merges fields into users/{uid}, creating the document if needed.
func (s *FirestoreStore) MergeProfile(ctx context.Context, userID string, fields domain.Profile) error {
	data := make(map[string]any, len(fields))
	for k, v := range fields {
		data[k] = v
	}

	if _, err := s.client.Collection(usersCollection).Doc(userID).Set(ctx, data, firestore.MergeAll); err != nil {
		return errors.Wrap(err, "merge profile")
	}
	return nil
}

// DeleteProfile removes users/{uid}. Deleting a missing document succeeds.
func (s *FirestoreStore) DeleteProfile(ctx context.Context, userID string) error {
	if _, err := s.client.Collection(usersCollection).Doc(userID).Delete(ctx); err != nil {
		return errors.Wrap(err, "delete profile")
	}
	return nil
}

func personaFromSnapshot(snap *firestore.DocumentSnapshot) (*domain.Persona, error) {
	var doc personaDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Wrapf(err, "decode persona %s", snap.Ref.ID)
	}
	p := &domain.Persona{
		ID:              snap.Ref.ID,
		Name:            doc.Name,
		Description:     doc.Description,
		Characteristics: doc.Characteristics,
		UserID:          doc.UserID,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	if p.Characteristics == nil {
		p.Characteristics = []string{}
	}
	return p, nil
}

var _ Repository = (*FirestoreStore)(nil)
