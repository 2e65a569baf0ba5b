package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/bot-gateway-go/internal/errors"
	"github.com/openclaw/bot-gateway-go/internal/model"
	"github.com/openclaw/bot-gateway-go/internal/store"
)

const (
	pairingCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	pairingCodeLength = 8
	mainGroupFolder   = "main"
)

// PairingService owns the unpaired -> pending -> paired state machine.
// Every query reads the persisted slots; nothing is cached across calls,
// so an external reset of the owner file is observed immediately.
type PairingService struct {
	store   store.Store
	dataDir string
	ttl     time.Duration
	now     func() time.Time
}

func NewPairingService(st store.Store, dataDir string, ttl time.Duration) *PairingService {
	return &PairingService{
		store:   st,
		dataDir: dataDir,
		ttl:     ttl,
		now:     time.Now,
	}
}

// CreatePairingRequest generates a fresh code and persists it as the
// pending request, silently replacing any prior one. The returned code
// is shown to the requester for redemption via the pair command.
func (s *PairingService) CreatePairingRequest(requesterID, roomID, roomName string) (string, error) {
	code := generatePairingCode()

	pending := &model.PendingPairing{
		Code:        code,
		RequesterID: requesterID,
		RoomID:      roomID,
		RoomName:    roomName,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.SavePending(pending); err != nil {
		return "", fmt.Errorf("save pending pairing: %w", err)
	}

	log.Info().
		Str("requesterId", requesterID).
		Str("roomId", roomID).
		Msg("pairing request created")

	return code, nil
}

// GetPendingPairing returns the current pending request, or nil if none
// exists. Expiry is observed, not scheduled: a record older than the TTL
// is deleted here, at read time.
func (s *PairingService) GetPendingPairing() (*model.PendingPairing, error) {
	pending, err := s.store.LoadPending()
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, nil
	}

	if s.now().Sub(pending.CreatedAt) > s.ttl {
		if err := s.store.DeletePending(); err != nil {
			return nil, err
		}
		log.Debug().
			Str("requesterId", pending.RequesterID).
			Time("createdAt", pending.CreatedAt).
			Msg("pending pairing expired")
		return nil, nil
	}

	return pending, nil
}

// ApprovePairing is the sole unpaired -> paired transition. The code is
// compared case-insensitively; a mismatch leaves the pending record
// intact so the operator can retry. On match the Owner is persisted and
// the pending record consumed.
func (s *PairingService) ApprovePairing(code string) (*model.Owner, error) {
	pending, err := s.GetPendingPairing()
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, nil
	}

	if !strings.EqualFold(strings.TrimSpace(code), pending.Code) {
		log.Warn().Str("roomId", pending.RoomID).Msg("pairing code mismatch")
		return nil, nil
	}

	owner := &model.Owner{
		UserID:     pending.RequesterID,
		MainRoomID: pending.RoomID,
		PairedAt:   s.now().UTC(),
	}
	if err := s.store.SaveOwner(owner); err != nil {
		return nil, fmt.Errorf("save owner: %w", err)
	}
	if err := s.store.DeletePending(); err != nil {
		return nil, fmt.Errorf("consume pending pairing: %w", err)
	}

	log.Info().
		Str("ownerId", owner.UserID).
		Str("mainRoomId", owner.MainRoomID).
		Msg("pairing approved")

	return owner, nil
}

// ApproveAndRegister runs the full administrative flow: refuse when
// already paired, approve the code, register the main room in the groups
// mapping, and create its log directory.
func (s *PairingService) ApproveAndRegister(code string) (*model.Owner, error) {
	if s.IsPaired() {
		return nil, apperrors.AlreadyPaired()
	}

	pending, err := s.GetPendingPairing()
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, nil
	}

	owner, err := s.ApprovePairing(code)
	if err != nil || owner == nil {
		return nil, err
	}

	name := pending.RoomName
	if name == "" {
		name = pending.RoomID
	}
	if err := s.store.SaveGroup(owner.MainRoomID, model.RoomConfig{
		Name:    name,
		Folder:  mainGroupFolder,
		AddedAt: s.now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("register main group: %w", err)
	}

	logDir := filepath.Join(s.dataDir, "logs", mainGroupFolder)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create main group log dir: %w", err)
	}

	return owner, nil
}

// Owner returns the current owner record, or nil when unpaired.
func (s *PairingService) Owner() (*model.Owner, error) {
	return s.store.LoadOwner()
}

func (s *PairingService) IsPaired() bool {
	owner, err := s.store.LoadOwner()
	if err != nil {
		log.Error().Err(err).Msg("load owner")
		return false
	}
	return owner != nil
}

func (s *PairingService) IsOwner(userID string) bool {
	owner, err := s.store.LoadOwner()
	if err != nil || owner == nil {
		return false
	}
	return owner.UserID == userID
}

func (s *PairingService) IsMainRoom(roomID string) bool {
	owner, err := s.store.LoadOwner()
	if err != nil || owner == nil {
		return false
	}
	return owner.MainRoomID == roomID
}

func generatePairingCode() string {
	chars := []byte(pairingCodeChars)
	code := make([]byte, pairingCodeLength)

	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		code[i] = chars[n.Int64()]
	}

	return string(code)
}
