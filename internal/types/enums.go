package types

// AuthorizationStatus mirrors OCPP 1.6's idTagInfo.status enumeration.
type AuthorizationStatus string

const (
	AuthorizationAccepted     AuthorizationStatus = "Accepted"
	AuthorizationBlocked      AuthorizationStatus = "Blocked"
	AuthorizationExpired      AuthorizationStatus = "Expired"
	AuthorizationInvalid      AuthorizationStatus = "Invalid"
	AuthorizationConcurrentTx AuthorizationStatus = "ConcurrentTx"
)

// ChargePointStatus mirrors OCPP 1.6's StatusNotification status enumeration.
type ChargePointStatus string

const (
	StatusAvailable     ChargePointStatus = "Available"
	StatusPreparing     ChargePointStatus = "Preparing"
	StatusCharging      ChargePointStatus = "Charging"
	StatusSuspendedEV   ChargePointStatus = "SuspendedEV"
	StatusSuspendedEVSE ChargePointStatus = "SuspendedEVSE"
	StatusFinishing     ChargePointStatus = "Finishing"
	StatusReserved      ChargePointStatus = "Reserved"
	StatusUnavailable   ChargePointStatus = "Unavailable"
	StatusFaulted       ChargePointStatus = "Faulted"
)

// Reason mirrors OCPP 1.6's StopTransaction.reason enumeration (the subset
// the Transaction Core emits or accepts from local callers).
type Reason string

const (
	ReasonLocal           Reason = "Local"
	ReasonRemote          Reason = "Remote"
	ReasonDeAuthorized    Reason = "DeAuthorized"
	ReasonEVDisconnected  Reason = "EVDisconnected"
	ReasonPowerLoss       Reason = "PowerLoss"
	ReasonOther           Reason = "Other"
	ReasonUnlockCommand   Reason = "UnlockCommand"
	ReasonHardReset       Reason = "HardReset"
	ReasonSoftReset       Reason = "SoftReset"
)

// RegistrationStatus mirrors OCPP 1.6's BootNotification.status enumeration.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "Pending"
	RegistrationAccepted RegistrationStatus = "Accepted"
	RegistrationRejected RegistrationStatus = "Rejected"
)

// RemoteStartStopStatus mirrors OCPP 1.6's RemoteStart/StopTransaction.status
// response enumeration.
type RemoteStartStopStatus string

const (
	RemoteStartStopAccepted RemoteStartStopStatus = "Accepted"
	RemoteStartStopRejected RemoteStartStopStatus = "Rejected"
)

// FifoAction identifies the OCPP action a durable FIFO entry carries.
type FifoAction string

const (
	ActionStartTransaction FifoAction = "StartTransaction"
	ActionStopTransaction  FifoAction = "StopTransaction"
	ActionMeterValues      FifoAction = "MeterValues"
)

// ConnectorIDChargePoint is the sentinel connector id meaning "the whole
// charge point" rather than a specific physical connector.
const ConnectorIDChargePoint = 0

// TransactionIDNone means no transaction is active on a connector.
const TransactionIDNone = 0

// TransactionIDProvisional is the sentinel used while a StartTransaction
// is queued in the FIFO and not yet confirmed by the central system.
const TransactionIDProvisional = -1
