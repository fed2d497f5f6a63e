package services

import (
	"context"
	"log"
	"time"

	"ridepool_server/models"
	"ridepool_server/utils"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// SweepStore is the slice of the store the sweeper needs
type SweepStore interface {
	ScanItems(ctx context.Context, tableName string) ([]map[string]types.AttributeValue, error)
	BatchDeleteItems(ctx context.Context, tableName string, keys []map[string]types.AttributeValue) error
}

// SweepReport summarizes one sweep pass
type SweepReport struct {
	SweptAt       int64    `json:"sweptAt"`
	DeletedCount  int      `json:"deletedCount"`
	DeletedGroups []string `json:"deletedGroups"`
}

// SweeperService is the only component that physically deletes groups from
// the authoritative store. It runs on a fixed schedule with no coordination
// channel to clients: a client write racing a sweep simply fails and is
// rolled back like any other remote failure.
type SweeperService struct {
	Store    SweepStore
	Table    string
	Archive  *SweepArchiveService
	Interval time.Duration
}

func NewSweeperService(store SweepStore, table string, archive *SweepArchiveService) *SweeperService {
	return &SweeperService{
		Store:    store,
		Table:    table,
		Archive:  archive,
		Interval: models.SweepInterval,
	}
}

// Start runs the sweep loop until the context is canceled
func (s *SweeperService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Printf("Sweeper started (interval: %s)", s.Interval)
	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, time.Now()); err != nil {
				log.Printf("Error cleaning up expired groups: %v", err)
			}
		case <-ctx.Done():
			log.Println("Sweeper stopped")
			return
		}
	}
}

// SweepOnce scans every stored group and deletes the expired ones in a single
// batched write. A group without a stored expiresAt falls back to
// createdAt + the fixed TTL. Unexpired groups are left untouched.
func (s *SweeperService) SweepOnce(ctx context.Context, now time.Time) (SweepReport, error) {
	report := SweepReport{SweptAt: now.UnixMilli(), DeletedGroups: []string{}}

	items, err := s.Store.ScanItems(ctx, s.Table)
	if err != nil {
		return report, err
	}
	if len(items) == 0 {
		log.Println("No groups found to clean up")
		return report, nil
	}

	nowMillis := now.UnixMilli()
	var expiredKeys []map[string]types.AttributeValue
	for _, item := range items {
		groupID := utils.ExtractString(item, "groupId")
		if groupID == "" {
			continue
		}

		expiresAt, found := utils.ExtractNumber(item, "expiresAt")
		if !found {
			createdAt, _ := utils.ExtractNumber(item, "createdAt")
			expiresAt = createdAt + models.GroupTTL.Milliseconds()
		}

		if nowMillis > expiresAt {
			expiredKeys = append(expiredKeys, map[string]types.AttributeValue{
				"groupId": &types.AttributeValueMemberS{Value: groupID},
			})
			report.DeletedGroups = append(report.DeletedGroups, groupID)
		}
	}

	if len(expiredKeys) == 0 {
		log.Println("No expired groups found")
		return report, nil
	}

	if err := s.Store.BatchDeleteItems(ctx, s.Table, expiredKeys); err != nil {
		report.DeletedGroups = []string{}
		return report, err
	}
	report.DeletedCount = len(expiredKeys)
	log.Printf("Cleaned up %d expired groups: %v", report.DeletedCount, report.DeletedGroups)

	if s.Archive != nil {
		if err := s.Archive.StoreReport(ctx, report); err != nil {
			// Archiving is best-effort; the deletions already happened.
			log.Printf("Failed to archive sweep report: %v", err)
		}
	}

	return report, nil
}
