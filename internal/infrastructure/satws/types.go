package satws

// Status codes returned by the bulk download web service. The service
// reports them as strings in the CodEstatus field.
const (
	codeAccepted      = "5000" // request accepted
	codeExhausted     = "5002" // lifetime request limit for the range reached
	codeNoDocuments   = "5004" // no documents exist for the requested range
	codeDuplicate     = "5005" // an identical request already exists
	codeDailyQuota    = "5011" // daily request quota exceeded
	codeMinuteQuota   = "5012" // per-minute request quota exceeded
	codeInvalidSigner = "305"  // certificate rejected
)

// Package build states reported by the verification endpoint
const (
	stateAccepted   = 1
	stateInProgress = 2
	stateFinished   = 3
	stateFailed     = 4
	stateRejected   = 5
	stateExpired    = 6
)

// requestEnvelope is the payload for the package request endpoint
type requestEnvelope struct {
	RFC         string `json:"rfcSolicitante"`
	IssuerRFC   string `json:"rfcEmisor,omitempty"`
	ReceiverRFC string `json:"rfcReceptor,omitempty"`
	DateFrom    string `json:"fechaInicial"`
	DateTo      string `json:"fechaFinal"`
	RequestType string `json:"tipoSolicitud"`
}

// requestResponse is the reply to a package request
type requestResponse struct {
	Code      string `json:"codEstatus"`
	Message   string `json:"mensaje"`
	RequestID string `json:"idSolicitud"`
}

// verifyEnvelope is the payload for the verification endpoint
type verifyEnvelope struct {
	RFC       string `json:"rfcSolicitante"`
	RequestID string `json:"idSolicitud"`
}

// verifyResponse is the reply to a verification call
type verifyResponse struct {
	Code       string   `json:"codEstatus"`
	Message    string   `json:"mensaje"`
	State      int      `json:"estadoSolicitud"`
	PackageIDs []string `json:"idsPaquetes"`
	Documents  int      `json:"numeroCfdis"`
}

// downloadEnvelope is the payload for the package download endpoint
type downloadEnvelope struct {
	RFC       string `json:"rfcSolicitante"`
	PackageID string `json:"idPaquete"`
}

// downloadResponse carries one package as a base64-encoded ZIP archive
type downloadResponse struct {
	Code    string `json:"codEstatus"`
	Message string `json:"mensaje"`
	Package string `json:"paquete"`
}
