// Package testfixtures provides deterministic domain records for application
// and persistence tests.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/application"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/scheduling"
)

var (
	userCounter        uint64
	dependentCounter   uint64
	doctorCounter      uint64
	appointmentCounter uint64
	sessionCounter     uint64
)

var referenceTime = time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the calendar day of ReferenceTime.
func ReferenceDate() scheduling.Date {
	return scheduling.DateOf(referenceTime)
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic portal account that can be
// materialised for application or persistence tests.
type UserFixture struct {
	ID           string
	NationalID   string
	Name         string
	PasswordHash string
	Phone        string
	Email        string
	Active       bool
	Plan         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		NationalID:   fmt.Sprintf("%011d", idx),
		Name:         fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		Phone:        fmt.Sprintf("+55119999%05d", idx),
		Email:        fmt.Sprintf("%s@example.com", id),
		Active:       true,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserNationalID overrides the generated national ID.
func WithUserNationalID(nationalID string) UserOption {
	return func(f *UserFixture) {
		f.NationalID = nationalID
	}
}

// WithUserName overrides the generated display name.
func WithUserName(name string) UserOption {
	return func(f *UserFixture) {
		f.Name = name
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserPhone overrides the generated phone number.
func WithUserPhone(phone string) UserOption {
	return func(f *UserFixture) {
		f.Phone = phone
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserActive sets the active flag on the generated fixture.
func WithUserActive(active bool) UserOption {
	return func(f *UserFixture) {
		f.Active = active
	}
}

// WithUserPlan sets the health plan identifier.
func WithUserPlan(plan string) UserOption {
	return func(f *UserFixture) {
		f.Plan = plan
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:         f.ID,
		NationalID: f.NationalID,
		Name:       f.Name,
		Phone:      f.Phone,
		Email:      f.Email,
		Active:     f.Active,
		Plan:       f.Plan,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User:         f.Application(),
		PasswordHash: f.PasswordHash,
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		NationalID:   f.NationalID,
		Name:         f.Name,
		PasswordHash: f.PasswordHash,
		Phone:        f.Phone,
		Email:        f.Email,
		Active:       f.Active,
		Plan:         f.Plan,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// --------------------------- Dependent fixtures ---------------------------

// DependentFixture represents a deterministic dependent record.
type DependentFixture struct {
	ID           string
	UserID       string
	NationalID   string
	Relationship string
	CardNumber   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DependentOption configures the generated dependent fixture.
type DependentOption func(*DependentFixture)

// NewDependentFixture returns a deterministic dependent fixture with optional
// overrides.
func NewDependentFixture(opts ...DependentOption) DependentFixture {
	idx := atomic.AddUint64(&dependentCounter, 1)
	id := fmt.Sprintf("dependent-%03d", idx)
	fixture := DependentFixture{
		ID:           id,
		UserID:       fmt.Sprintf("user-%03d", idx),
		NationalID:   fmt.Sprintf("%011d", 90000000000+idx),
		Relationship: "child",
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithDependentID overrides the generated dependent ID.
func WithDependentID(id string) DependentOption {
	return func(f *DependentFixture) {
		f.ID = id
	}
}

// WithDependentUserID sets the owning user ID.
func WithDependentUserID(userID string) DependentOption {
	return func(f *DependentFixture) {
		f.UserID = userID
	}
}

// WithDependentNationalID overrides the generated national ID.
func WithDependentNationalID(nationalID string) DependentOption {
	return func(f *DependentFixture) {
		f.NationalID = nationalID
	}
}

// WithDependentRelationship sets the relationship label.
func WithDependentRelationship(relationship string) DependentOption {
	return func(f *DependentFixture) {
		f.Relationship = relationship
	}
}

// WithDependentCardNumber sets the insurance card number.
func WithDependentCardNumber(cardNumber string) DependentOption {
	return func(f *DependentFixture) {
		f.CardNumber = cardNumber
	}
}

// Application returns the fixture as an application.Dependent value.
func (f DependentFixture) Application() application.Dependent {
	return application.Dependent{
		ID:           f.ID,
		UserID:       f.UserID,
		NationalID:   f.NationalID,
		Relationship: f.Relationship,
		CardNumber:   f.CardNumber,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Input returns the fixture as an application.DependentInput.
func (f DependentFixture) Input() application.DependentInput {
	return application.DependentInput{
		NationalID:   f.NationalID,
		Relationship: f.Relationship,
		CardNumber:   f.CardNumber,
	}
}

// Persistence returns the fixture as a persistence.Dependent value.
func (f DependentFixture) Persistence() persistence.Dependent {
	return persistence.Dependent{
		ID:           f.ID,
		UserID:       f.UserID,
		NationalID:   f.NationalID,
		Relationship: f.Relationship,
		CardNumber:   f.CardNumber,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Doctor fixtures ----------------------------

// DoctorFixture represents a deterministic doctor record together with its
// unit and specialty.
type DoctorFixture struct {
	ID          string
	UnitID      string
	SpecialtyID string
	Name        string
	Active      bool
}

// DoctorOption configures the generated doctor fixture.
type DoctorOption func(*DoctorFixture)

// NewDoctorFixture returns a deterministic doctor fixture with optional
// overrides.
func NewDoctorFixture(opts ...DoctorOption) DoctorFixture {
	idx := atomic.AddUint64(&doctorCounter, 1)
	fixture := DoctorFixture{
		ID:          fmt.Sprintf("doctor-%03d", idx),
		UnitID:      fmt.Sprintf("unit-%03d", idx),
		SpecialtyID: fmt.Sprintf("specialty-%03d", idx),
		Name:        fmt.Sprintf("Doctor %03d", idx),
		Active:      true,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithDoctorID overrides the generated doctor ID.
func WithDoctorID(id string) DoctorOption {
	return func(f *DoctorFixture) {
		f.ID = id
	}
}

// WithDoctorUnitID sets the unit affiliation.
func WithDoctorUnitID(unitID string) DoctorOption {
	return func(f *DoctorFixture) {
		f.UnitID = unitID
	}
}

// WithDoctorSpecialtyID sets the specialty affiliation.
func WithDoctorSpecialtyID(specialtyID string) DoctorOption {
	return func(f *DoctorFixture) {
		f.SpecialtyID = specialtyID
	}
}

// WithDoctorName overrides the generated name.
func WithDoctorName(name string) DoctorOption {
	return func(f *DoctorFixture) {
		f.Name = name
	}
}

// WithDoctorActive sets the active flag on the fixture.
func WithDoctorActive(active bool) DoctorOption {
	return func(f *DoctorFixture) {
		f.Active = active
	}
}

// Application returns the fixture as an application.Doctor value.
func (f DoctorFixture) Application() application.Doctor {
	return application.Doctor{
		ID:          f.ID,
		UnitID:      f.UnitID,
		SpecialtyID: f.SpecialtyID,
		Name:        f.Name,
		Active:      f.Active,
	}
}

// Persistence returns the fixture as a persistence.Doctor value.
func (f DoctorFixture) Persistence() persistence.Doctor {
	return persistence.Doctor{
		ID:          f.ID,
		UnitID:      f.UnitID,
		SpecialtyID: f.SpecialtyID,
		Name:        f.Name,
		Active:      f.Active,
	}
}

// Unit returns the unit the doctor is affiliated with.
func (f DoctorFixture) Unit() persistence.Unit {
	return persistence.Unit{ID: f.UnitID, Name: "Unit " + f.UnitID}
}

// Specialty returns the specialty the doctor is affiliated with.
func (f DoctorFixture) Specialty() persistence.Specialty {
	return persistence.Specialty{ID: f.SpecialtyID, Name: "Specialty " + f.SpecialtyID}
}

// -------------------------- Appointment fixtures --------------------------

// AppointmentFixture represents a deterministic appointment record.
type AppointmentFixture struct {
	ID          string
	UserID      string
	DependentID *string
	DoctorID    string
	UnitID      string
	SpecialtyID string
	Date        scheduling.Date
	Time        scheduling.TimeOfDay
	Status      persistence.AppointmentStatus
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AppointmentOption configures the generated appointment fixture.
type AppointmentOption func(*AppointmentFixture)

// NewAppointmentFixture returns a deterministic appointment fixture with
// optional overrides. The slot lands on tomorrow's grid relative to
// ReferenceTime.
func NewAppointmentFixture(opts ...AppointmentOption) AppointmentFixture {
	idx := atomic.AddUint64(&appointmentCounter, 1)
	fixture := AppointmentFixture{
		ID:          fmt.Sprintf("appointment-%03d", idx),
		UserID:      fmt.Sprintf("user-%03d", idx),
		DoctorID:    fmt.Sprintf("doctor-%03d", idx),
		UnitID:      fmt.Sprintf("unit-%03d", idx),
		SpecialtyID: fmt.Sprintf("specialty-%03d", idx),
		Date:        ReferenceDate().AddDays(1),
		Time:        scheduling.DefaultWorkingHours.First,
		Status:      persistence.StatusScheduled,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAppointmentID overrides the generated appointment ID.
func WithAppointmentID(id string) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.ID = id
	}
}

// WithAppointmentUserID sets the owning user ID.
func WithAppointmentUserID(userID string) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.UserID = userID
	}
}

// WithAppointmentDependentID sets the optional dependent ID.
func WithAppointmentDependentID(dependentID string) AppointmentOption {
	return func(f *AppointmentFixture) {
		id := dependentID
		f.DependentID = &id
	}
}

// WithoutAppointmentDependent clears the dependent ID.
func WithoutAppointmentDependent() AppointmentOption {
	return func(f *AppointmentFixture) {
		f.DependentID = nil
	}
}

// WithAppointmentDoctor sets the doctor and its affiliations from a doctor
// fixture.
func WithAppointmentDoctor(doctor DoctorFixture) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.DoctorID = doctor.ID
		f.UnitID = doctor.UnitID
		f.SpecialtyID = doctor.SpecialtyID
	}
}

// WithAppointmentSlot sets the slot coordinates.
func WithAppointmentSlot(date scheduling.Date, t scheduling.TimeOfDay) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.Date = date
		f.Time = t
	}
}

// WithAppointmentStatus sets the lifecycle status.
func WithAppointmentStatus(status persistence.AppointmentStatus) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.Status = status
	}
}

// WithAppointmentNotes sets the free-form notes field.
func WithAppointmentNotes(notes string) AppointmentOption {
	return func(f *AppointmentFixture) {
		f.Notes = notes
	}
}

// Application returns the fixture as an application.Appointment value.
func (f AppointmentFixture) Application() application.Appointment {
	return application.Appointment{
		ID:          f.ID,
		UserID:      f.UserID,
		DependentID: copyStringPtr(f.DependentID),
		DoctorID:    f.DoctorID,
		UnitID:      f.UnitID,
		SpecialtyID: f.SpecialtyID,
		Date:        f.Date,
		Time:        f.Time,
		Status:      application.AppointmentStatus(f.Status),
		Notes:       f.Notes,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Appointment value.
func (f AppointmentFixture) Persistence() persistence.Appointment {
	return persistence.Appointment{
		ID:          f.ID,
		UserID:      f.UserID,
		DependentID: copyStringPtr(f.DependentID),
		DoctorID:    f.DoctorID,
		UnitID:      f.UnitID,
		SpecialtyID: f.SpecialtyID,
		Date:        f.Date,
		Time:        f.Time,
		Status:      f.Status,
		Notes:       f.Notes,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ----------------------------- Session fixtures ---------------------------

// SessionFixture represents a deterministic auth session record.
type SessionFixture struct {
	ID               string
	UserID           string
	Purpose          persistence.SessionPurpose
	Code             string
	Channel          string
	ExpiresAt        time.Time
	Verified         bool
	ResendCount      int
	RefreshToken     *string
	RefreshExpiresAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic login session fixture with
// optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:          fmt.Sprintf("session-%03d", idx),
		UserID:      fmt.Sprintf("user-%03d", idx),
		Purpose:     persistence.PurposeLogin,
		Code:        "123456",
		Channel:     "sms",
		ExpiresAt:   referenceTime.Add(5 * time.Minute),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
		ResendCount: 0,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionUserID sets the user ID.
func WithSessionUserID(userID string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = userID
	}
}

// WithSessionPurpose sets the session purpose.
func WithSessionPurpose(purpose persistence.SessionPurpose) SessionOption {
	return func(f *SessionFixture) {
		f.Purpose = purpose
	}
}

// WithSessionCode sets the pending verification code.
func WithSessionCode(code string) SessionOption {
	return func(f *SessionFixture) {
		f.Code = code
	}
}

// WithSessionChannel sets the delivery channel.
func WithSessionChannel(channel string) SessionOption {
	return func(f *SessionFixture) {
		f.Channel = channel
	}
}

// WithSessionExpiresAt sets the code expiry.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionVerified marks the session as verified and clears the code.
func WithSessionVerified() SessionOption {
	return func(f *SessionFixture) {
		f.Verified = true
		f.Code = ""
	}
}

// WithSessionResendCount sets the resend counter.
func WithSessionResendCount(count int) SessionOption {
	return func(f *SessionFixture) {
		f.ResendCount = count
	}
}

// WithSessionRefreshToken binds a refresh token expiring after the given TTL.
func WithSessionRefreshToken(token string, ttl time.Duration) SessionOption {
	return func(f *SessionFixture) {
		value := token
		expiry := referenceTime.Add(ttl)
		f.RefreshToken = &value
		f.RefreshExpiresAt = &expiry
	}
}

// Application returns the fixture as an application.AuthSession value.
func (f SessionFixture) Application() application.AuthSession {
	return application.AuthSession{
		ID:               f.ID,
		UserID:           f.UserID,
		Purpose:          application.SessionPurpose(f.Purpose),
		Code:             f.Code,
		Channel:          f.Channel,
		ExpiresAt:        f.ExpiresAt,
		Verified:         f.Verified,
		ResendCount:      f.ResendCount,
		RefreshToken:     copyStringPtr(f.RefreshToken),
		RefreshExpiresAt: copyTimePtr(f.RefreshExpiresAt),
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.AuthSession value.
func (f SessionFixture) Persistence() persistence.AuthSession {
	return persistence.AuthSession{
		ID:               f.ID,
		UserID:           f.UserID,
		Purpose:          f.Purpose,
		Code:             f.Code,
		Channel:          f.Channel,
		ExpiresAt:        f.ExpiresAt,
		Verified:         f.Verified,
		ResendCount:      f.ResendCount,
		RefreshToken:     copyStringPtr(f.RefreshToken),
		RefreshExpiresAt: copyTimePtr(f.RefreshExpiresAt),
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// helper to deep copy optional strings.
func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
