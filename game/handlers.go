package game

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/yanghwi/daily-dungeon/auth"
	"github.com/yanghwi/daily-dungeon/domain"
)

const (
	ErrUnauthenticatedStr = "unauthenticated"
	ErrUnknownStr         = "unknown-error"
	ErrBadLimitStr        = "bad-limit"

	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

type GameHandler struct {
	rooms    RoomService
	runs     RunStore
	upgrader websocket.Upgrader
}

func NewGameHandler(rooms RoomService, runs RunStore, allowedOrigins []string) *GameHandler {
	return &GameHandler{
		rooms: rooms,
		runs:  runs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *GameHandler) accountID(ctx *gin.Context) (string, bool) {
	id := ctx.GetString(auth.AccountIDKey)
	if id == "" {
		log.Error().
			Str("ip", ctx.ClientIP()).
			Str("user_agent", ctx.Request.UserAgent()).
			Msg("account id missing from context, is the auth middleware mounted?")
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthenticatedStr})
		return "", false
	}
	return id, true
}

func (h *GameHandler) upgrade(ctx *gin.Context) (WebsocketConnection, bool) {
	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("websocket upgrade failed")
		return nil, false
	}
	return NewWebsocketConnection(conn), true
}

func (h *GameHandler) CreateRoomHandler(ctx *gin.Context) {
	id, ok := h.accountID(ctx)
	if !ok {
		return
	}
	if h.rooms.Seated(id) {
		ctx.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ErrAlreadyInRoom.Error()})
		return
	}
	socket, ok := h.upgrade(ctx)
	if !ok {
		return
	}
	private := ctx.Query("private") == "true"
	if _, err := h.rooms.CreateRoom(ctx.Request.Context(), id, socket, private); err != nil {
		log.Warn().Err(err).Str("account", id).Msg("create room failed")
	}
}

func (h *GameHandler) JoinRoomHandler(ctx *gin.Context) {
	id, ok := h.accountID(ctx)
	if !ok {
		return
	}
	if h.rooms.Seated(id) {
		ctx.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ErrAlreadyInRoom.Error()})
		return
	}
	socket, ok := h.upgrade(ctx)
	if !ok {
		return
	}
	if err := h.rooms.JoinRoom(ctx.Request.Context(), id, ctx.Param("code"), socket); err != nil {
		log.Debug().Err(err).Str("account", id).Msg("join room failed")
	}
}

func (h *GameHandler) QuickJoinHandler(ctx *gin.Context) {
	id, ok := h.accountID(ctx)
	if !ok {
		return
	}
	if h.rooms.Seated(id) {
		ctx.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ErrAlreadyInRoom.Error()})
		return
	}
	socket, ok := h.upgrade(ctx)
	if !ok {
		return
	}
	if _, err := h.rooms.QuickJoin(ctx.Request.Context(), id, socket); err != nil {
		log.Debug().Err(err).Str("account", id).Msg("quick join failed")
	}
}

// ReconnectHandler always upgrades; failures are reported over the socket.
func (h *GameHandler) ReconnectHandler(ctx *gin.Context) {
	id, ok := h.accountID(ctx)
	if !ok {
		return
	}
	socket, ok := h.upgrade(ctx)
	if !ok {
		return
	}
	if err := h.rooms.Reconnect(ctx.Request.Context(), id, socket); err != nil {
		log.Debug().Err(err).Str("account", id).Msg("reconnect failed")
	}
}

func (h *GameHandler) PublicRoomsHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"rooms": h.rooms.PublicRooms()})
}

type participantView struct {
	CharacterName string `json:"characterName"`
	Background    string `json:"background"`
	Survived      bool   `json:"survived"`
	DamageTaken   int    `json:"damageTaken"`
}

type runView struct {
	ID           string            `json:"id"`
	RoomCode     string            `json:"roomCode"`
	Result       domain.RunResult  `json:"result"`
	WavesCleared int               `json:"wavesCleared"`
	Highlights   []string          `json:"highlights"`
	Participants []participantView `json:"participants"`
	CreatedAt    time.Time         `json:"createdAt"`
}

func newRunView(rec domain.RunRecord) runView {
	v := runView{
		ID:           rec.Id,
		RoomCode:     rec.RoomCode,
		Result:       rec.Result,
		WavesCleared: rec.WavesCleared,
		Highlights:   rec.Highlights,
		Participants: make([]participantView, 0, len(rec.Participants)),
		CreatedAt:    rec.CreatedAt,
	}
	if v.Highlights == nil {
		v.Highlights = []string{}
	}
	for _, p := range rec.Participants {
		v.Participants = append(v.Participants, participantView{
			CharacterName: p.CharacterName,
			Background:    p.Background,
			Survived:      p.Survived,
			DamageTaken:   p.DamageTaken,
		})
	}
	return v
}

// RunsHandler lists the caller's finished runs, newest first.
func (h *GameHandler) RunsHandler(ctx *gin.Context) {
	id, ok := h.accountID(ctx)
	if !ok {
		return
	}
	limit := defaultRunsLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrBadLimitStr})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	records, err := h.runs.ListRuns(ctx.Request.Context(), id, limit)
	if err != nil {
		log.Error().Err(err).Str("account", id).Msg("listing runs failed")
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		return
	}
	views := make([]runView, 0, len(records))
	for _, rec := range records {
		views = append(views, newRunView(rec))
	}
	ctx.JSON(http.StatusOK, gin.H{"runs": views})
}
