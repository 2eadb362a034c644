package obs

import "encoding/json"

// Opcodes.
const (
	opHello      = 0
	opIdentify   = 1
	opIdentified = 2
	opEvent      = 5
	opRequest    = 6
	opResponse   = 7
)

// rpcVersion is the obs-websocket RPC version this client speaks.
const rpcVersion = 1

// Event subscription bits.
const (
	eventGeneral = 1 << 0
	eventScenes  = 1 << 2

	eventSubscriptions = eventGeneral | eventScenes
)

// closeAuthenticationFailed is the websocket close code OBS sends on bad auth.
const closeAuthenticationFailed = 4009

// Event types that affect the scene list or the program scene.
const (
	EventCurrentProgramSceneChanged = "CurrentProgramSceneChanged"
	EventSceneListChanged           = "SceneListChanged"
	EventSceneCreated               = "SceneCreated"
	EventSceneRemoved               = "SceneRemoved"
	EventSceneNameChanged           = "SceneNameChanged"
)

type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	ObsWebSocketVersion string         `json:"obsWebSocketVersion"`
	RPCVersion          int            `json:"rpcVersion"`
	Authentication      *authChallenge `json:"authentication,omitempty"`
}

type authChallenge struct {
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
}

type identifyData struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type identifiedData struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

type requestData struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type requestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

type responseData struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus requestStatus   `json:"requestStatus"`
	ResponseData  json.RawMessage `json:"responseData,omitempty"`
}

type eventData struct {
	EventType   string          `json:"eventType"`
	EventIntent int             `json:"eventIntent"`
	EventData   json.RawMessage `json:"eventData,omitempty"`
}

// Event is an OBS event delivered to subscribers.
type Event struct {
	Type string
	Data json.RawMessage
}

// sceneListResponse is the GetSceneList response body.
type sceneListResponse struct {
	CurrentProgramSceneName string       `json:"currentProgramSceneName"`
	CurrentProgramSceneUUID string       `json:"currentProgramSceneUuid"`
	Scenes                  []sceneEntry `json:"scenes"`
}

type sceneEntry struct {
	SceneName  string `json:"sceneName"`
	SceneUUID  string `json:"sceneUuid"`
	SceneIndex int    `json:"sceneIndex"`
}

type programSceneChanged struct {
	SceneName string `json:"sceneName"`
	SceneUUID string `json:"sceneUuid"`
}

type setProgramScene struct {
	SceneName string `json:"sceneName,omitempty"`
	SceneUUID string `json:"sceneUuid,omitempty"`
}

func marshalEnvelope(op int, d any) ([]byte, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Op: op, D: body})
}
