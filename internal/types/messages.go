package types

import "time"

// IdTagInfo is the authorization verdict the central system attaches to
// StartTransaction/StopTransaction/Authorize responses.
type IdTagInfo struct {
	Status      AuthorizationStatus `json:"status"`
	ExpiryDate  *time.Time          `json:"expiryDate,omitempty"`
	ParentIdTag string              `json:"parentIdTag,omitempty"`
}

// ChargingProfile is an opaque OCPP 1.6 SmartCharging profile document.
// The Transaction Core only ever forwards it to the SmartChargingManager
// collaborator; it never inspects the fields itself.
type ChargingProfile map[string]interface{}

// MeterValue is a single OCPP 1.6 MeterValue sample, as produced by the
// MeterValuesManager collaborator.
type MeterValue struct {
	Timestamp    time.Time              `json:"timestamp"`
	SampledValue []map[string]interface{} `json:"sampledValue"`
}

// StartTransactionReq is the OCPP 1.6 StartTransaction.req payload.
type StartTransactionReq struct {
	ConnectorID   int       `json:"connectorId"`
	IdTag         string    `json:"idTag"`
	MeterStart    int       `json:"meterStart"`
	Timestamp     time.Time `json:"timestamp"`
	ReservationID *int      `json:"reservationId,omitempty"`
}

// StartTransactionConf is the OCPP 1.6 StartTransaction.conf payload.
type StartTransactionConf struct {
	TransactionID int       `json:"transactionId"`
	IdTagInfo     IdTagInfo `json:"idTagInfo"`
}

// StopTransactionReq is the OCPP 1.6 StopTransaction.req payload.
type StopTransactionReq struct {
	TransactionID   int          `json:"transactionId"`
	IdTag           string       `json:"idTag,omitempty"`
	MeterStop       int          `json:"meterStop"`
	Timestamp       time.Time    `json:"timestamp"`
	Reason          Reason       `json:"reason"`
	TransactionData []MeterValue `json:"transactionData,omitempty"`
}

// StopTransactionConf is the OCPP 1.6 StopTransaction.conf payload.
type StopTransactionConf struct {
	IdTagInfo *IdTagInfo `json:"idTagInfo,omitempty"`
}

// MeterValuesReq is the OCPP 1.6 MeterValues.req payload.
type MeterValuesReq struct {
	ConnectorID   int          `json:"connectorId"`
	TransactionID *int         `json:"transactionId,omitempty"`
	MeterValue    []MeterValue `json:"meterValue"`
}

// MeterValuesConf is the OCPP 1.6 MeterValues.conf payload (empty body).
type MeterValuesConf struct{}

// RemoteStartTransactionReq is the OCPP 1.6 RemoteStartTransaction.req
// payload, sent by the central system.
type RemoteStartTransactionReq struct {
	IdTag           string           `json:"idTag"`
	ConnectorID     *int             `json:"connectorId,omitempty"`
	ChargingProfile *ChargingProfile `json:"chargingProfile,omitempty"`
}

// RemoteStartTransactionConf is the OCPP 1.6 RemoteStartTransaction.conf
// response.
type RemoteStartTransactionConf struct {
	Status RemoteStartStopStatus `json:"status"`
}

// RemoteStopTransactionReq is the OCPP 1.6 RemoteStopTransaction.req
// payload, sent by the central system.
type RemoteStopTransactionReq struct {
	TransactionID int `json:"transactionId"`
}

// RemoteStopTransactionConf is the OCPP 1.6 RemoteStopTransaction.conf
// response.
type RemoteStopTransactionConf struct {
	Status RemoteStartStopStatus `json:"status"`
}
