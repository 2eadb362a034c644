package obs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

const (
	testSalt      = "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI="
	testChallenge = "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY="
)

// fakeOBS is a minimal obs-websocket v5 server.
type fakeOBS struct {
	t        *testing.T
	server   *httptest.Server
	password string

	mu       sync.Mutex
	scenes   []string
	current  string
	setFail  int // non-zero: SetCurrentProgramScene fails with this code
	silent   bool
	requests map[string]int
	setCalls []string
	conns    []*fakeConn
}

type fakeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *fakeConn) write(op int, d any) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(envelope{Op: op, D: body})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func newFakeOBS(t *testing.T, password string, scenes ...string) *fakeOBS {
	t.Helper()
	f := &fakeOBS{
		t:        t,
		password: password,
		scenes:   scenes,
		requests: make(map[string]int),
	}
	if len(scenes) > 0 {
		f.current = scenes[0]
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOBS) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func (f *fakeOBS) serve(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &fakeConn{conn: ws}
	defer ws.Close()

	hello := helloData{ObsWebSocketVersion: "5.5.0", RPCVersion: rpcVersion}
	if f.password != "" {
		hello.Authentication = &authChallenge{Challenge: testChallenge, Salt: testSalt}
	}
	if err := conn.write(opHello, hello); err != nil {
		return
	}

	var env envelope
	if err := ws.ReadJSON(&env); err != nil || env.Op != opIdentify {
		return
	}
	var ident identifyData
	_ = json.Unmarshal(env.D, &ident)
	if f.password != "" && ident.Authentication != authResponse(f.password, testSalt, testChallenge) {
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeAuthenticationFailed, "Authentication failed."))
		return
	}
	if err := conn.write(opIdentified, identifiedData{NegotiatedRPCVersion: rpcVersion}); err != nil {
		return
	}

	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	for {
		var env envelope
		if err := ws.ReadJSON(&env); err != nil {
			return
		}
		if env.Op != opRequest {
			continue
		}
		var req struct {
			RequestType string          `json:"requestType"`
			RequestID   string          `json:"requestId"`
			RequestData json.RawMessage `json:"requestData"`
		}
		_ = json.Unmarshal(env.D, &req)

		resp, ok := f.handle(req.RequestType, req.RequestData)
		if !ok {
			continue
		}
		resp.RequestType = req.RequestType
		resp.RequestID = req.RequestID
		if err := conn.write(opResponse, resp); err != nil {
			return
		}
	}
}

func (f *fakeOBS) handle(requestType string, data json.RawMessage) (responseData, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests[requestType]++
	if f.silent {
		return responseData{}, false
	}

	switch requestType {
	case "GetSceneList":
		list := sceneListResponse{CurrentProgramSceneName: f.current}
		for i, name := range f.scenes {
			list.Scenes = append(list.Scenes, sceneEntry{SceneName: name, SceneUUID: "uuid-" + name, SceneIndex: i})
		}
		body, _ := json.Marshal(list)
		return responseData{RequestStatus: requestStatus{Result: true, Code: StatusSuccess}, ResponseData: body}, true

	case "SetCurrentProgramScene":
		var in setProgramScene
		_ = json.Unmarshal(data, &in)
		f.setCalls = append(f.setCalls, in.SceneName)
		if f.setFail != 0 {
			return responseData{RequestStatus: requestStatus{Code: f.setFail, Comment: "rejected"}}, true
		}
		if !containsString(f.scenes, in.SceneName) {
			return responseData{RequestStatus: requestStatus{Code: StatusResourceNotFound, Comment: "No source was found"}}, true
		}
		f.current = in.SceneName
		return responseData{RequestStatus: requestStatus{Result: true, Code: StatusSuccess}}, true
	}

	return responseData{RequestStatus: requestStatus{Code: 204, Comment: "Unknown request type"}}, true
}

// emit sends an event to every identified connection.
func (f *fakeOBS) emit(eventType string, data any) {
	body, _ := json.Marshal(data)
	f.mu.Lock()
	conns := append([]*fakeConn(nil), f.conns...)
	f.mu.Unlock()
	for _, c := range conns {
		_ = c.write(opEvent, eventData{EventType: eventType, EventData: body})
	}
}

// dropAll closes every server-side connection.
func (f *fakeOBS) dropAll() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()
	for _, c := range conns {
		_ = c.conn.Close()
	}
}

func (f *fakeOBS) setScenes(scenes ...string) {
	f.mu.Lock()
	f.scenes = scenes
	f.mu.Unlock()
}

func (f *fakeOBS) count(requestType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[requestType]
}

func (f *fakeOBS) switched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.setCalls...)
}

func (f *fakeOBS) connCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
