package store

import (
	"context"
	"sync"

	"onramp/internal/onboarding/models"
	id "onramp/pkg/domain"
)

// MemoryStore keeps all records in maps behind one mutex. The single lock also
// makes SaveVehicleAndClaimPlate atomic without any transaction machinery.
type MemoryStore struct {
	mu               sync.RWMutex
	drivers          map[id.DriverID]models.Driver
	documents        map[id.DriverID]map[models.DocumentType]models.Document
	vehicles         map[id.DriverID]models.Vehicle
	agreements       map[id.DriverID]models.Agreements
	backgroundChecks map[id.DriverID]models.BackgroundCheck
	plates           map[id.PlateNumber]id.DriverID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drivers:          make(map[id.DriverID]models.Driver),
		documents:        make(map[id.DriverID]map[models.DocumentType]models.Document),
		vehicles:         make(map[id.DriverID]models.Vehicle),
		agreements:       make(map[id.DriverID]models.Agreements),
		backgroundChecks: make(map[id.DriverID]models.BackgroundCheck),
		plates:           make(map[id.PlateNumber]id.DriverID),
	}
}

func (s *MemoryStore) GetDriver(_ context.Context, driverID id.DriverID) (*models.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	driver, ok := s.drivers[driverID]
	if !ok {
		return nil, ErrNotFound
	}
	return &driver, nil
}

func (s *MemoryStore) SaveDriver(_ context.Context, driver *models.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[driver.ID] = *driver
	return nil
}

func (s *MemoryStore) GetDocuments(_ context.Context, driverID id.DriverID) (map[models.DocumentType]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.DocumentType]*models.Document, len(s.documents[driverID]))
	for docType, doc := range s.documents[driverID] {
		doc := doc
		out[docType] = &doc
	}
	return out, nil
}

func (s *MemoryStore) SaveDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType, ok := s.documents[doc.DriverID]
	if !ok {
		byType = make(map[models.DocumentType]models.Document)
		s.documents[doc.DriverID] = byType
	}
	byType[doc.Type] = *doc
	return nil
}

func (s *MemoryStore) GetVehicle(_ context.Context, driverID id.DriverID) (*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vehicle, ok := s.vehicles[driverID]
	if !ok {
		return nil, ErrNotFound
	}
	return &vehicle, nil
}

func (s *MemoryStore) SaveVehicleAndClaimPlate(_ context.Context, vehicle *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, claimed := s.plates[vehicle.Plate]; claimed && owner != vehicle.DriverID {
		return ErrPlateTaken
	}
	if previous, ok := s.vehicles[vehicle.DriverID]; ok && previous.Plate != vehicle.Plate {
		delete(s.plates, previous.Plate)
	}
	s.plates[vehicle.Plate] = vehicle.DriverID
	s.vehicles[vehicle.DriverID] = *vehicle
	return nil
}

func (s *MemoryStore) GetAgreements(_ context.Context, driverID id.DriverID) (*models.Agreements, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agreements, ok := s.agreements[driverID]
	if !ok {
		return nil, ErrNotFound
	}
	return &agreements, nil
}

func (s *MemoryStore) SaveAgreements(_ context.Context, agreements *models.Agreements) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agreements[agreements.DriverID] = *agreements
	return nil
}

func (s *MemoryStore) GetBackgroundCheck(_ context.Context, driverID id.DriverID) (*models.BackgroundCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	check, ok := s.backgroundChecks[driverID]
	if !ok {
		return nil, ErrNotFound
	}
	return &check, nil
}

func (s *MemoryStore) SaveBackgroundCheck(_ context.Context, check *models.BackgroundCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backgroundChecks[check.DriverID] = *check
	return nil
}
