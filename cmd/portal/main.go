package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/application"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/config"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/delivery"
	httptransport "github.com/ozassa/app-e-portal-paciente-CTC-API/internal/http"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/logging"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence/sqlite"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/scheduling"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, logLevel(cfg.LogLevel))

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("failed to load timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	userRepo := sqlite.NewUserRepository(storage)
	dependentRepo := sqlite.NewDependentRepository(storage)
	catalogRepo := sqlite.NewCatalogRepository(storage)
	slotRepo := sqlite.NewSlotRepository(storage)
	appointmentRepo := sqlite.NewAppointmentRepository(storage)
	sessionRepo := sqlite.NewSessionRepository(storage)
	attemptRepo := sqlite.NewOTPAttemptRepository(storage)

	credentials := newCredentialStoreAdapter(userRepo)
	accounts := newAccountStoreAdapter(userRepo)
	sessions := newSessionStoreAdapter(sessionRepo)
	dependents := newDependentStoreAdapter(dependentRepo)
	appointments := newAppointmentStoreAdapter(appointmentRepo)
	slots := newSlotStoreAdapter(slotRepo)
	catalog := newCatalogStoreAdapter(catalogRepo)

	messenger := delivery.NewLogMessenger(logger)

	authService := application.NewAuthServiceWithLogger(credentials, sessions, attemptRepo, messenger, idGenerator, now, logger)
	tokenService := application.NewTokenServiceWithLogger(sessions, []byte(cfg.TokenSecret), tokenGenerator, now, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, logger)
	userService := application.NewUserServiceWithLogger(accounts, sessions, idGenerator, now, logger)
	dependentService := application.NewDependentServiceWithLogger(dependents, appointments, idGenerator, now, logger)
	appointmentService := application.NewAppointmentServiceWithLogger(appointments, slots, catalog, dependents, messenger, idGenerator, now, location, logger)
	catalogService := application.NewCatalogServiceWithLogger(catalog, logger)

	warmSlotHorizon(ctx, logger, catalogService, appointmentService, now().In(location))

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, tokenService, logger),
		Profile:      httptransport.NewProfileHandler(userService, logger),
		Dependents:   httptransport.NewDependentHandler(dependentService, logger),
		Appointments: httptransport.NewAppointmentHandler(appointmentService, logger),
		Catalog:      httptransport.NewCatalogHandler(catalogService, logger),
		Authenticate: httptransport.RequireToken(tokenService, logger),
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
		Logger:       logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("patient portal API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func logLevel(value string) slog.Level {
	switch value {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// warmSlotHorizon pre-generates the rolling availability grid for every
// active doctor so first bookings never race slot creation. Failures are
// logged and tolerated because booking regenerates slots lazily.
func warmSlotHorizon(ctx context.Context, logger *slog.Logger, catalog *application.CatalogService, appointments *application.AppointmentService, startedAt time.Time) {
	doctors, err := catalog.ListDoctors(ctx)
	if err != nil {
		logger.Warn("failed to list doctors for slot warm-up", "error", err)
		return
	}

	from := scheduling.DateOf(startedAt)
	for _, doctor := range doctors {
		if !doctor.Active {
			continue
		}
		if err := appointments.EnsureHorizon(ctx, doctor.ID, from, scheduling.DefaultHorizonDays); err != nil {
			logger.Warn("failed to warm slot horizon", "doctor_id", doctor.ID, "error", err)
		}
	}
}

type credentialStoreAdapter struct {
	repo *sqlite.UserRepository
}

func newCredentialStoreAdapter(repo *sqlite.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentialsByNationalID(ctx context.Context, nationalID string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByNationalID(ctx, nationalID)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *credentialStoreAdapter) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	stored, err := a.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	stored.PasswordHash = passwordHash
	stored.UpdatedAt = time.Now().UTC()
	return a.repo.UpdateUser(ctx, stored)
}

type accountStoreAdapter struct {
	repo *sqlite.UserRepository
}

func newAccountStoreAdapter(repo *sqlite.UserRepository) *accountStoreAdapter {
	return &accountStoreAdapter{repo: repo}
}

func (a *accountStoreAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *accountStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *accountStoreAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, current.PasswordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

type sessionStoreAdapter struct {
	repo *sqlite.SessionRepository
}

func newSessionStoreAdapter(repo *sqlite.SessionRepository) *sessionStoreAdapter {
	return &sessionStoreAdapter{repo: repo}
}

func (a *sessionStoreAdapter) CreateSession(ctx context.Context, session application.AuthSession) (application.AuthSession, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.AuthSession{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) GetSession(ctx context.Context, id string) (application.AuthSession, error) {
	stored, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return application.AuthSession{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) GetSessionByRefreshToken(ctx context.Context, token string) (application.AuthSession, error) {
	stored, err := a.repo.GetSessionByRefreshToken(ctx, token)
	if err != nil {
		return application.AuthSession{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) UpdateSession(ctx context.Context, session application.AuthSession) (application.AuthSession, error) {
	stored, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.AuthSession{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) ConsumeCode(ctx context.Context, sessionID, code string) (application.AuthSession, error) {
	stored, err := a.repo.ConsumeCode(ctx, sessionID, code)
	if err != nil {
		return application.AuthSession{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) RotateRefreshToken(ctx context.Context, sessionID string, current *string, next string, expiresAt time.Time) (application.AuthSession, error) {
	stored, err := a.repo.RotateRefreshToken(ctx, sessionID, cloneString(current), next, expiresAt)
	if err != nil {
		return application.AuthSession{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) DeleteSession(ctx context.Context, id string) error {
	return a.repo.DeleteSession(ctx, id)
}

func (a *sessionStoreAdapter) DeleteSessionsForUser(ctx context.Context, userID string) error {
	return a.repo.DeleteSessionsForUser(ctx, userID)
}

func (a *sessionStoreAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

type dependentStoreAdapter struct {
	repo *sqlite.DependentRepository
}

func newDependentStoreAdapter(repo *sqlite.DependentRepository) *dependentStoreAdapter {
	return &dependentStoreAdapter{repo: repo}
}

func (a *dependentStoreAdapter) CreateDependent(ctx context.Context, dependent application.Dependent) (application.Dependent, error) {
	if err := a.repo.CreateDependent(ctx, toPersistenceDependent(dependent)); err != nil {
		return application.Dependent{}, err
	}
	stored, err := a.repo.GetDependent(ctx, dependent.ID)
	if err != nil {
		return application.Dependent{}, err
	}
	return toApplicationDependent(stored), nil
}

func (a *dependentStoreAdapter) GetDependent(ctx context.Context, id string) (application.Dependent, error) {
	stored, err := a.repo.GetDependent(ctx, id)
	if err != nil {
		return application.Dependent{}, err
	}
	return toApplicationDependent(stored), nil
}

func (a *dependentStoreAdapter) UpdateDependent(ctx context.Context, dependent application.Dependent) (application.Dependent, error) {
	if err := a.repo.UpdateDependent(ctx, toPersistenceDependent(dependent)); err != nil {
		return application.Dependent{}, err
	}
	stored, err := a.repo.GetDependent(ctx, dependent.ID)
	if err != nil {
		return application.Dependent{}, err
	}
	return toApplicationDependent(stored), nil
}

func (a *dependentStoreAdapter) DeleteDependent(ctx context.Context, id string) error {
	return a.repo.DeleteDependent(ctx, id)
}

func (a *dependentStoreAdapter) ListDependentsForUser(ctx context.Context, userID string) ([]application.Dependent, error) {
	models, err := a.repo.ListDependentsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	dependents := make([]application.Dependent, 0, len(models))
	for _, model := range models {
		dependents = append(dependents, toApplicationDependent(model))
	}
	return dependents, nil
}

type appointmentStoreAdapter struct {
	repo *sqlite.AppointmentRepository
}

func newAppointmentStoreAdapter(repo *sqlite.AppointmentRepository) *appointmentStoreAdapter {
	return &appointmentStoreAdapter{repo: repo}
}

func (a *appointmentStoreAdapter) BookScheduled(ctx context.Context, appointment application.Appointment) (application.Appointment, error) {
	stored, err := a.repo.BookScheduled(ctx, toPersistenceAppointment(appointment))
	if err != nil {
		return application.Appointment{}, err
	}
	return toApplicationAppointment(stored), nil
}

func (a *appointmentStoreAdapter) RescheduleScheduled(ctx context.Context, id string, date scheduling.Date, t scheduling.TimeOfDay, notes string) (application.Appointment, error) {
	stored, err := a.repo.RescheduleScheduled(ctx, id, date, t, notes)
	if err != nil {
		return application.Appointment{}, err
	}
	return toApplicationAppointment(stored), nil
}

func (a *appointmentStoreAdapter) CancelScheduled(ctx context.Context, id string) (application.Appointment, error) {
	stored, err := a.repo.CancelScheduled(ctx, id)
	if err != nil {
		return application.Appointment{}, err
	}
	return toApplicationAppointment(stored), nil
}

func (a *appointmentStoreAdapter) GetAppointment(ctx context.Context, id string) (application.Appointment, error) {
	stored, err := a.repo.GetAppointment(ctx, id)
	if err != nil {
		return application.Appointment{}, err
	}
	return toApplicationAppointment(stored), nil
}

func (a *appointmentStoreAdapter) ListAppointments(ctx context.Context, filter application.AppointmentStoreFilter) ([]application.Appointment, error) {
	statuses := make([]persistence.AppointmentStatus, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, persistence.AppointmentStatus(status))
	}
	models, err := a.repo.ListAppointments(ctx, persistence.AppointmentFilter{
		UserID:      filter.UserID,
		DependentID: cloneString(filter.DependentID),
		Statuses:    statuses,
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	appointments := make([]application.Appointment, 0, len(models))
	for _, model := range models {
		appointments = append(appointments, toApplicationAppointment(model))
	}
	return appointments, nil
}

func (a *appointmentStoreAdapter) CountFutureScheduledForDependent(ctx context.Context, dependentID string, from scheduling.Date) (int, error) {
	return a.repo.CountFutureScheduledForDependent(ctx, dependentID, from)
}

// slotStoreAdapter retries transiently locked availability reads once before
// surfacing the failure.
type slotStoreAdapter struct {
	repo  *sqlite.SlotRepository
	retry sqlite.RetryConfig
}

func newSlotStoreAdapter(repo *sqlite.SlotRepository) *slotStoreAdapter {
	return &slotStoreAdapter{repo: repo, retry: sqlite.DefaultRetryConfig()}
}

func (a *slotStoreAdapter) EnsureSlots(ctx context.Context, doctorID string, date scheduling.Date, times []scheduling.TimeOfDay) error {
	return a.repo.EnsureSlots(ctx, doctorID, date, times)
}

func (a *slotStoreAdapter) ListFreeSlots(ctx context.Context, doctorID string, date scheduling.Date) ([]scheduling.TimeOfDay, error) {
	var times []scheduling.TimeOfDay
	err := sqlite.WithRetry(ctx, a.retry, func() error {
		var listErr error
		times, listErr = a.repo.ListFreeSlots(ctx, doctorID, date)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	return times, nil
}

type catalogStoreAdapter struct {
	repo *sqlite.CatalogRepository
}

func newCatalogStoreAdapter(repo *sqlite.CatalogRepository) *catalogStoreAdapter {
	return &catalogStoreAdapter{repo: repo}
}

func (a *catalogStoreAdapter) ListUnits(ctx context.Context) ([]application.Unit, error) {
	models, err := a.repo.ListUnits(ctx)
	if err != nil {
		return nil, err
	}
	units := make([]application.Unit, 0, len(models))
	for _, model := range models {
		units = append(units, application.Unit{ID: model.ID, Name: model.Name, Address: model.Address})
	}
	return units, nil
}

func (a *catalogStoreAdapter) ListSpecialties(ctx context.Context) ([]application.Specialty, error) {
	models, err := a.repo.ListSpecialties(ctx)
	if err != nil {
		return nil, err
	}
	specialties := make([]application.Specialty, 0, len(models))
	for _, model := range models {
		specialties = append(specialties, application.Specialty{ID: model.ID, Name: model.Name})
	}
	return specialties, nil
}

func (a *catalogStoreAdapter) ListDoctors(ctx context.Context) ([]application.Doctor, error) {
	models, err := a.repo.ListDoctors(ctx)
	if err != nil {
		return nil, err
	}
	doctors := make([]application.Doctor, 0, len(models))
	for _, model := range models {
		doctors = append(doctors, toApplicationDoctor(model))
	}
	return doctors, nil
}

func (a *catalogStoreAdapter) GetDoctor(ctx context.Context, id string) (application.Doctor, error) {
	stored, err := a.repo.GetDoctor(ctx, id)
	if err != nil {
		return application.Doctor{}, err
	}
	return toApplicationDoctor(stored), nil
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:         model.ID,
		NationalID: model.NationalID,
		Name:       model.Name,
		Phone:      model.Phone,
		Email:      model.Email,
		Active:     model.Active,
		Plan:       model.Plan,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		NationalID:   user.NationalID,
		Name:         user.Name,
		PasswordHash: passwordHash,
		Phone:        user.Phone,
		Email:        user.Email,
		Active:       user.Active,
		Plan:         user.Plan,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationDependent(model persistence.Dependent) application.Dependent {
	return application.Dependent{
		ID:           model.ID,
		UserID:       model.UserID,
		NationalID:   model.NationalID,
		Relationship: model.Relationship,
		CardNumber:   model.CardNumber,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toPersistenceDependent(dependent application.Dependent) persistence.Dependent {
	return persistence.Dependent{
		ID:           dependent.ID,
		UserID:       dependent.UserID,
		NationalID:   dependent.NationalID,
		Relationship: dependent.Relationship,
		CardNumber:   dependent.CardNumber,
		CreatedAt:    dependent.CreatedAt,
		UpdatedAt:    dependent.UpdatedAt,
	}
}

func toApplicationDoctor(model persistence.Doctor) application.Doctor {
	return application.Doctor{
		ID:          model.ID,
		UnitID:      model.UnitID,
		SpecialtyID: model.SpecialtyID,
		Name:        model.Name,
		Active:      model.Active,
	}
}

func toApplicationAppointment(model persistence.Appointment) application.Appointment {
	return application.Appointment{
		ID:          model.ID,
		UserID:      model.UserID,
		DependentID: cloneString(model.DependentID),
		DoctorID:    model.DoctorID,
		UnitID:      model.UnitID,
		SpecialtyID: model.SpecialtyID,
		Date:        model.Date,
		Time:        model.Time,
		Status:      application.AppointmentStatus(model.Status),
		Notes:       model.Notes,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceAppointment(appointment application.Appointment) persistence.Appointment {
	return persistence.Appointment{
		ID:          appointment.ID,
		UserID:      appointment.UserID,
		DependentID: cloneString(appointment.DependentID),
		DoctorID:    appointment.DoctorID,
		UnitID:      appointment.UnitID,
		SpecialtyID: appointment.SpecialtyID,
		Date:        appointment.Date,
		Time:        appointment.Time,
		Status:      persistence.AppointmentStatus(appointment.Status),
		Notes:       appointment.Notes,
		CreatedAt:   appointment.CreatedAt,
		UpdatedAt:   appointment.UpdatedAt,
	}
}

func toApplicationSession(model persistence.AuthSession) application.AuthSession {
	return application.AuthSession{
		ID:               model.ID,
		UserID:           model.UserID,
		Purpose:          application.SessionPurpose(model.Purpose),
		Code:             model.Code,
		Channel:          model.Channel,
		ExpiresAt:        model.ExpiresAt,
		Verified:         model.Verified,
		ResendCount:      model.ResendCount,
		RefreshToken:     cloneString(model.RefreshToken),
		RefreshExpiresAt: cloneTime(model.RefreshExpiresAt),
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

func toPersistenceSession(session application.AuthSession) persistence.AuthSession {
	return persistence.AuthSession{
		ID:               session.ID,
		UserID:           session.UserID,
		Purpose:          persistence.SessionPurpose(session.Purpose),
		Code:             session.Code,
		Channel:          session.Channel,
		ExpiresAt:        session.ExpiresAt,
		Verified:         session.Verified,
		ResendCount:      session.ResendCount,
		RefreshToken:     cloneString(session.RefreshToken),
		RefreshExpiresAt: cloneTime(session.RefreshExpiresAt),
		CreatedAt:        session.CreatedAt,
		UpdatedAt:        session.UpdatedAt,
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
