package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/config"
	"github.com/classhall/assess-backend/internal/middleware"
	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/service"
	ws "github.com/classhall/assess-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs the live attempt stream: autosave, focus monitoring
// with a grace window, the authoritative countdown, and the submit.
type WSHandler struct {
	attempts       *service.AttemptService
	metrics        *service.MetricsService
	rdb            *redis.Client
	integrityGrace time.Duration
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attempts *service.AttemptService, metrics *service.MetricsService, rdb *redis.Client, integrityGrace time.Duration, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts:       attempts,
		metrics:        metrics,
		rdb:            rdb,
		integrityGrace: integrityGrace,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/participant/assessments/:assessment_id/stream
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assessment ID"})
		return
	}

	state, err := h.attempts.GetAttemptState(c.Request.Context(), assessmentID, claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no attempt for this assessment"})
		return
	}
	if state.Status != model.SubmissionStatusInProgress {
		c.JSON(http.StatusConflict, gin.H{"error": "attempt is already sealed"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sess := &wsSession{
		handler:       h,
		conn:          conn,
		assessmentID:  assessmentID,
		participantID: claims.UserID,
		submissionID:  state.SubmissionID,
		connID:        uuid.New().String(),
		log: h.log.With().
			Int("participant_id", claims.UserID).
			Str("assessment_id", assessmentID.String()).
			Logger(),
	}
	sess.run(state.Deadline)
}

// wsSession holds one live connection. All writes happen on the run
// goroutine; the read pump only feeds the message channel.
type wsSession struct {
	handler       *WSHandler
	conn          *websocket.Conn
	assessmentID  uuid.UUID
	participantID int
	submissionID  uuid.UUID
	connID        string
	log           zerolog.Logger
}

func (s *wsSession) run(deadline time.Time) {
	ctx := context.Background()
	s.log.Info().Time("deadline", deadline).Msg("Participant connected")

	presenceKey := config.CacheKey.PresenceKey(s.assessmentID.String(), s.participantID)
	s.handler.rdb.Set(ctx, presenceKey, s.connID, 0)

	msgs := make(chan ws.RequestPayload)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go s.readPump(msgs, readErr, done)

	// The server holds the only countdown that matters. When it fires
	// the attempt is sealed whether or not the client noticed.
	countdown := time.NewTimer(time.Until(deadline))
	defer countdown.Stop()

	// graceTimer runs while focus is lost; regaining focus stops it.
	var graceTimer *time.Timer
	var graceCh <-chan time.Time
	stopGrace := func() {
		if graceTimer != nil {
			graceTimer.Stop()
			graceTimer = nil
			graceCh = nil
		}
	}
	defer stopGrace()

	for {
		select {
		case <-countdown.C:
			s.seal(ctx, model.SealReasonTimeout)
			return

		case <-graceCh:
			s.log.Info().Msg("Focus grace window elapsed")
			s.seal(ctx, model.SealReasonIntegrity)
			return

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			s.handleDisconnect(ctx, presenceKey)
			return

		case msg := <-msgs:
			switch msg.Action {
			case ws.ActionAutosave:
				s.handleAutosave(ctx, &msg)
			case ws.ActionFocus:
				s.handleFocus(ctx, &msg, &graceTimer, &graceCh, stopGrace)
			case ws.ActionSubmit:
				s.seal(ctx, model.SealReasonManual)
				return
			case ws.ActionPing:
				ws.WriteTyped(s.conn, ws.PongResponse{Event: ws.EventPong})
			default:
				s.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
				ws.WriteError(s.conn, "unknown action: "+string(msg.Action))
			}
		}
	}
}

func (s *wsSession) readPump(msgs chan<- ws.RequestPayload, readErr chan<- error, done <-chan struct{}) {
	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(s.conn, &msg); err != nil {
			readErr <- err
			return
		}
		select {
		case msgs <- msg:
		case <-done:
			return
		}
	}
}

func (s *wsSession) handleAutosave(ctx context.Context, msg *ws.RequestPayload) {
	if msg.QID == "" || msg.Answer == "" {
		ws.WriteError(s.conn, "q_id and ans are required")
		return
	}

	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		ws.WriteError(s.conn, "invalid q_id format")
		return
	}

	if err := s.handler.attempts.RecordAnswer(ctx, s.submissionID, questionID, msg.Answer); err != nil {
		if err == service.ErrSessionSealed {
			ws.WriteTyped(s.conn, ws.SealedResponse{Event: ws.EventSealed, Reason: string(model.SealReasonTimeout)})
			return
		}
		s.log.Error().Err(err).Msg("Autosave failed")
		ws.WriteError(s.conn, "save failed")
		return
	}
	ws.WriteTyped(s.conn, ws.SuccessResponse{Event: ws.EventSuccess, Status: "saved"})
}

func (s *wsSession) handleFocus(ctx context.Context, msg *ws.RequestPayload, graceTimer **time.Timer, graceCh *<-chan time.Time, stopGrace func()) {
	switch msg.Focus {
	case ws.FocusLost:
		s.handler.attempts.RecordIntegrityEvent(ctx, s.submissionID, model.IntegrityKindFocusLost, msg.Detail)
		if *graceTimer == nil {
			t := time.NewTimer(s.handler.integrityGrace)
			*graceTimer = t
			*graceCh = t.C
		}
		ws.WriteTyped(s.conn, ws.WarningResponse{
			Event:        ws.EventWarning,
			Warning:      "focus lost, return within the grace window",
			GraceSeconds: int(s.handler.integrityGrace.Seconds()),
		})
	case ws.FocusRegained:
		s.handler.attempts.RecordIntegrityEvent(ctx, s.submissionID, model.IntegrityKindFocusRegained, msg.Detail)
		stopGrace()
		ws.WriteTyped(s.conn, ws.SuccessResponse{Event: ws.EventSuccess, Status: "focus restored"})
	default:
		ws.WriteError(s.conn, "focus must be lost or regained")
	}
}

// seal closes the attempt, acknowledges it to the client, and sends the
// graded result when auto grading already resolved it.
func (s *wsSession) seal(ctx context.Context, reason model.SealReason) {
	sealed, fired, err := s.handler.attempts.Seal(ctx, s.submissionID, reason)
	if err != nil {
		s.log.Error().Err(err).Str("reason", string(reason)).Msg("Seal failed")
		ws.WriteError(s.conn, "submit failed, your attempt is queued for recovery")
		return
	}
	if fired {
		s.handler.metrics.AttemptSealed(reason)
	}

	submittedAt := ""
	if sealed.SubmittedAt != nil {
		submittedAt = sealed.SubmittedAt.Format(time.RFC3339)
	}
	actualReason := reason
	if sealed.SealReason != nil {
		actualReason = *sealed.SealReason
	}
	ws.WriteTyped(s.conn, ws.SealedResponse{
		Event:       ws.EventSealed,
		Reason:      string(actualReason),
		SubmittedAt: submittedAt,
	})

	if sealed.TotalScore != nil && sealed.Percentage != nil {
		ws.WriteTyped(s.conn, ws.GradedResponse{
			Event:      ws.EventGraded,
			Status:     string(sealed.Status),
			TotalScore: *sealed.TotalScore,
			Percentage: *sealed.Percentage,
		})
	}

	s.handler.rdb.Del(ctx, config.CacheKey.PresenceKey(s.assessmentID.String(), s.participantID))
	s.log.Info().Str("reason", string(actualReason)).Msg("Attempt stream finished")
}

// handleDisconnect gives the participant one grace window to reconnect
// before the attempt is sealed. A refresh that comes back in time finds
// a new presence marker and nothing happens.
func (s *wsSession) handleDisconnect(ctx context.Context, presenceKey string) {
	current, err := s.handler.rdb.Get(ctx, presenceKey).Result()
	if err == nil && current != s.connID {
		// A newer connection already took over.
		return
	}
	s.handler.rdb.Del(ctx, presenceKey)
	s.handler.attempts.RecordIntegrityEvent(ctx, s.submissionID, model.IntegrityKindDisconnected, "")

	handler := s.handler
	submissionID := s.submissionID
	log := s.log
	time.AfterFunc(handler.integrityGrace, func() {
		bg := context.Background()
		if _, err := handler.rdb.Get(bg, presenceKey).Result(); err == nil {
			return // reconnected in time
		}
		_, fired, err := handler.attempts.Seal(bg, submissionID, model.SealReasonDisconnect)
		if err != nil {
			log.Error().Err(err).Msg("Disconnect seal failed")
			return
		}
		if fired {
			handler.metrics.AttemptSealed(model.SealReasonDisconnect)
			log.Info().Msg("Attempt sealed after disconnect grace")
		}
	})
}
