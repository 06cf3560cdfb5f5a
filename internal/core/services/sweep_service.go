package services

import (
	"context"
	"log"
	"time"

	"treasury-lghub/internal/adapters/persistence/models"
	"treasury-lghub/internal/adapters/persistence/repositories"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Reminder sweep defaults, overridable per customer through settings.
const (
	defaultReminderThresholdDays = 30
	defaultReminderIntervalDays  = 7
)

// SweepService runs the scheduled background batches: approval auto-expiry,
// LG expiry demotion, and expiry reminders. Each sweep is idempotent; a rerun
// only touches rows still matching its cutoff.
type SweepService struct {
	db          *gorm.DB
	approvals   *ApprovalService
	transitions *TransitionService
	notifier    Notifier
	cron        *cron.Cron
}

// NewSweepService creates a new sweep service
func NewSweepService(db *gorm.DB, approvals *ApprovalService, transitions *TransitionService, notifier Notifier) *SweepService {
	return &SweepService{
		db:          db,
		approvals:   approvals,
		transitions: transitions,
		notifier:    notifier,
		cron:        cron.New(),
	}
}

// Start schedules the sweeps. Expiry and reminders run once nightly; the
// approval sweep runs hourly so stale requests do not linger a full day past
// their window.
func (s *SweepService) Start() {
	s.cron.AddFunc("0 * * * *", func() { s.RunApprovalExpiry(context.Background()) })
	s.cron.AddFunc("15 0 * * *", func() { s.RunLGExpiry(context.Background()) })
	s.cron.AddFunc("30 8 * * *", func() { s.RunReminders(context.Background()) })
	s.cron.Start()
	log.Println("🚀 SweepService started")
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *SweepService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 SweepService stopped")
}

// RunApprovalExpiry auto-rejects requests pending past their window.
func (s *SweepService) RunApprovalExpiry(ctx context.Context) {
	expired, err := s.approvals.ExpireStale(ctx)
	if err != nil {
		log.Printf("❌ Approval expiry sweep failed: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("✅ Approval expiry sweep: %d requests auto-rejected", expired)
	}
}

// RunLGExpiry demotes VALID records past their expiry date to EXPIRED. Auto-
// renewing records are skipped; a later extension is expected on those.
func (s *SweepService) RunLGExpiry(ctx context.Context) {
	candidates, err := repositories.NewLGRepository(s.db).ListExpiryCandidates(ctx, time.Now())
	if err != nil {
		log.Printf("❌ LG expiry sweep failed: %v", err)
		return
	}

	demoted := 0
	for _, lg := range candidates {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			fresh, err := loadLG(ctx, tx, lg.ID)
			if err != nil {
				return err
			}
			if fresh.Status != models.LGStatusValid || fresh.AutoRenewal || fresh.ExpiryDate.After(time.Now()) {
				return nil
			}
			fresh.Status = models.LGStatusExpired
			if err := repositories.NewLGRepository(tx).Update(ctx, fresh); err != nil {
				return err
			}
			demoted++
			lgID := fresh.ID
			return repositories.NewAuditRepository(tx).Create(ctx, &models.AuditLog{
				ActionType: models.AuditLgExpired,
				EntityType: models.EntityLGRecord,
				EntityID:   &lgID,
				Details: models.JSONMap{
					"expiry_date": fresh.ExpiryDate.Format(dateLayout),
				},
				CustomerID: fresh.CustomerID,
				LGRecordID: &lgID,
			})
		})
		if err != nil {
			log.Printf("❌ Could not expire LG %s: %v", lg.BusinessNumber, err)
		}
	}
	if demoted > 0 {
		log.Printf("✅ LG expiry sweep: %d records expired", demoted)
	}
}

// RunReminders emits a REMINDER instruction and a stakeholder email for every
// VALID record inside its reminder threshold, at most once per interval.
func (s *SweepService) RunReminders(ctx context.Context) {
	settingRepo := repositories.NewSettingRepository(s.db)
	instructionRepo := repositories.NewInstructionRepository(s.db)

	// The widest plausible threshold bounds the candidate query; the
	// per-customer threshold is applied per record below.
	candidates, err := repositories.NewLGRepository(s.db).ListReminderCandidates(ctx, time.Now().AddDate(0, 0, 365))
	if err != nil {
		log.Printf("❌ Reminder sweep failed: %v", err)
		return
	}

	sent := 0
	for _, lg := range candidates {
		thresholdDays, err := settingRepo.EffectiveInt(ctx, lg.CustomerID, models.SettingReminderThresholdDays, defaultReminderThresholdDays)
		if err != nil {
			log.Printf("❌ Reminder sweep: settings lookup failed for customer %d: %v", lg.CustomerID, err)
			continue
		}
		if lg.ExpiryDate.After(time.Now().AddDate(0, 0, thresholdDays)) {
			continue
		}

		intervalDays, err := settingRepo.EffectiveInt(ctx, lg.CustomerID, models.SettingReminderIntervalDays, defaultReminderIntervalDays)
		if err != nil {
			continue
		}
		lastReminder, err := instructionRepo.LastReminderAt(ctx, lg.ID)
		if err != nil {
			continue
		}
		if !lastReminder.IsZero() && time.Since(lastReminder) < time.Duration(intervalDays)*24*time.Hour {
			continue
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, _, err := s.transitions.EmitReminder(ctx, tx, lg.ID, &Actor{MakerUserID: 0})
			return err
		})
		if err != nil {
			log.Printf("❌ Reminder for LG %s failed: %v", lg.BusinessNumber, err)
			continue
		}
		sent++

		if s.notifier != nil {
			if recipients := stakeholderEmails(lg); len(recipients) > 0 {
				if err := s.notifier.NotifyExpiryReminder(ctx, recipients, lg); err != nil {
					log.Printf("⚠️ Reminder email for LG %s failed: %v", lg.BusinessNumber, err)
				}
			}
		}
	}
	if sent > 0 {
		log.Printf("✅ Reminder sweep: %d reminders issued", sent)
	}
}
