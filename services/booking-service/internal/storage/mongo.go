package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoCollectionSlots        = "slots"
	mongoCollectionAppointments = "appointments"
)

type slotDocument struct {
	ID       string     `bson:"_id"`
	Date     time.Time  `bson:"date"`
	Time     string     `bson:"time"`
	IsBooked bool       `bson:"isBooked"`
	BookedAt *time.Time `bson:"bookedAt,omitempty"`
}

func (d slotDocument) toModel() model.Slot {
	slot := model.Slot{ID: d.ID, Date: model.DateOnly(d.Date), Time: d.Time, IsBooked: d.IsBooked}
	if d.BookedAt != nil {
		t := d.BookedAt.UTC()
		slot.BookedAt = &t
	}
	return slot
}

type appointmentDocument struct {
	ID        string    `bson:"_id"`
	SlotID    string    `bson:"slotId"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	Reason    string    `bson:"reason"`
	Date      time.Time `bson:"date"`
	Time      string    `bson:"time"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (d appointmentDocument) toModel() model.Appointment {
	return model.Appointment{
		ID:        d.ID,
		SlotID:    d.SlotID,
		Name:      d.Name,
		Email:     d.Email,
		Reason:    d.Reason,
		Date:      model.DateOnly(d.Date),
		Time:      d.Time,
		Status:    model.Status(d.Status),
		CreatedAt: d.CreatedAt.UTC(),
	}
}

type MongoSlotStore struct {
	Collection *mongo.Collection
	now        func() time.Time
}

func NewMongoSlotStore(client *mongo.Client, dbName string) *MongoSlotStore {
	return &MongoSlotStore{
		Collection: client.Database(dbName).Collection(mongoCollectionSlots),
		now:        time.Now,
	}
}

// EnsureIndexes creates the index backing ListAvailable.
func (s *MongoSlotStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "isBooked", Value: 1}, {Key: "date", Value: 1}, {Key: "time", Value: 1}},
	})
	return err
}

var slotOrder = bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}, {Key: "_id", Value: 1}}

func (s *MongoSlotStore) findSlots(ctx context.Context, filter bson.M) ([]model.Slot, error) {
	cursor, err := s.Collection.Find(ctx, filter, options.Find().SetSort(slotOrder))
	if err != nil {
		return nil, err
	}
	var docs []slotDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	slots := make([]model.Slot, 0, len(docs))
	for _, d := range docs {
		slots = append(slots, d.toModel())
	}
	return slots, nil
}

func (s *MongoSlotStore) ListAvailable(ctx context.Context) ([]model.Slot, error) {
	return s.findSlots(ctx, bson.M{"isBooked": false})
}

func (s *MongoSlotStore) TryReserve(ctx context.Context, slotID string) (model.Slot, error) {
	var doc slotDocument
	err := s.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": slotID, "isBooked": false},
		bson.M{"$set": bson.M{"isBooked": true, "bookedAt": s.now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.toModel(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return model.Slot{}, err
	}
	if _, err := s.Get(ctx, slotID); err != nil {
		return model.Slot{}, err
	}
	return model.Slot{}, model.ErrSlotUnavailable
}

func (s *MongoSlotStore) Release(ctx context.Context, slotID string) error {
	res, err := s.Collection.UpdateOne(ctx,
		bson.M{"_id": slotID},
		bson.M{"$set": bson.M{"isBooked": false}, "$unset": bson.M{"bookedAt": ""}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *MongoSlotStore) Get(ctx context.Context, slotID string) (model.Slot, error) {
	var doc slotDocument
	err := s.Collection.FindOne(ctx, bson.M{"_id": slotID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Slot{}, model.ErrNotFound
	}
	if err != nil {
		return model.Slot{}, err
	}
	return doc.toModel(), nil
}

func (s *MongoSlotStore) Add(ctx context.Context, slot model.Slot) (bool, error) {
	doc := slotDocument{
		ID:       slot.ID,
		Date:     model.DateOnly(slot.Date),
		Time:     slot.Time,
		IsBooked: slot.IsBooked,
		BookedAt: slot.BookedAt,
	}
	res, err := s.Collection.UpdateOne(ctx,
		bson.M{"_id": slot.ID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return res.UpsertedCount == 1, nil
}

func (s *MongoSlotStore) ListBooked(ctx context.Context, bookedBefore time.Time) ([]model.Slot, error) {
	return s.findSlots(ctx, bson.M{"isBooked": true, "bookedAt": bson.M{"$lt": bookedBefore}})
}

func (s *MongoSlotStore) ReleaseIfBookedBefore(ctx context.Context, slotID string, cutoff time.Time) (bool, error) {
	res, err := s.Collection.UpdateOne(ctx,
		bson.M{"_id": slotID, "isBooked": true, "bookedAt": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{"isBooked": false}, "$unset": bson.M{"bookedAt": ""}},
	)
	if err != nil {
		return false, err
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, slotID); err != nil {
		return false, err
	}
	return false, nil
}

type MongoAppointmentStore struct {
	Collection *mongo.Collection
}

func NewMongoAppointmentStore(client *mongo.Client, dbName string) *MongoAppointmentStore {
	return &MongoAppointmentStore{Collection: client.Database(dbName).Collection(mongoCollectionAppointments)}
}

// EnsureIndexes creates the list index and a partial unique index allowing one active
// appointment per slot.
func (s *MongoAppointmentStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
		{
			Keys: bson.D{{Key: "slotId", Value: 1}},
			Options: options.Index().
				SetName("active_slot").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": bson.M{"$in": bson.A{"pending", "approved"}}}),
		},
	})
	return err
}

func (s *MongoAppointmentStore) Create(ctx context.Context, appt model.Appointment) error {
	createdAt := appt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.Collection.InsertOne(ctx, appointmentDocument{
		ID:        appt.ID,
		SlotID:    appt.SlotID,
		Name:      appt.Name,
		Email:     appt.Email,
		Reason:    appt.Reason,
		Date:      model.DateOnly(appt.Date),
		Time:      appt.Time,
		Status:    string(appt.Status),
		CreatedAt: createdAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		var we mongo.WriteException
		if errors.As(err, &we) {
			for _, e := range we.WriteErrors {
				if e.Code == 11000 && strings.Contains(e.Message, "active_slot") {
					return model.ErrSlotUnavailable
				}
			}
		}
		return model.ErrDuplicateID
	}
	return err
}

func (s *MongoAppointmentStore) Find(ctx context.Context, id string) (model.Appointment, error) {
	var doc appointmentDocument
	err := s.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Appointment{}, model.ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	return doc.toModel(), nil
}

func (s *MongoAppointmentStore) List(ctx context.Context, filter model.Status) ([]model.Appointment, error) {
	query := bson.M{}
	if filter != "" {
		query["status"] = string(filter)
	}
	cursor, err := s.Collection.Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []appointmentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	appts := make([]model.Appointment, 0, len(docs))
	for _, d := range docs {
		appts = append(appts, d.toModel())
	}
	return appts, nil
}

func (s *MongoAppointmentStore) updateStatus(ctx context.Context, filter bson.M, status model.Status) (model.Appointment, error) {
	var doc appointmentDocument
	err := s.Collection.FindOneAndUpdate(ctx, filter,
		bson.M{"$set": bson.M{"status": string(status)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return model.Appointment{}, err
	}
	return doc.toModel(), nil
}

func (s *MongoAppointmentStore) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Appointment, error) {
	appt, err := s.updateStatus(ctx, bson.M{"_id": id}, status)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Appointment{}, model.ErrNotFound
	}
	return appt, err
}

func (s *MongoAppointmentStore) SwapStatus(ctx context.Context, id string, from, to model.Status) (model.Appointment, error) {
	appt, err := s.updateStatus(ctx, bson.M{"_id": id, "status": string(from)}, to)
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return appt, err
	}
	if _, err := s.Find(ctx, id); err != nil {
		return model.Appointment{}, err
	}
	return model.Appointment{}, model.ErrStatusChanged
}

func (s *MongoAppointmentStore) Delete(ctx context.Context, id string) (model.Appointment, error) {
	var doc appointmentDocument
	err := s.Collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Appointment{}, model.ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	return doc.toModel(), nil
}

func (s *MongoAppointmentStore) HasActiveForSlot(ctx context.Context, slotID string) (bool, error) {
	n, err := s.Collection.CountDocuments(ctx, bson.M{
		"slotId": slotID,
		"status": bson.M{"$in": bson.A{string(model.StatusPending), string(model.StatusApproved)}},
	}, options.Count().SetLimit(1))
	return n > 0, err
}
