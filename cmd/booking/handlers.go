package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"lodging_booking/pkg/booking"
	"lodging_booking/pkg/events"
	"lodging_booking/pkg/models"

	"github.com/gin-gonic/gin"
)

const maxWebhookBytes = 64 << 10

func userID(c *gin.Context) (uint, bool) {
	header := c.GetHeader("X-User-Id")
	if header == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-Id header is required"})
		return 0, false
	}
	id, err := strconv.ParseUint(header, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-Id must be a positive integer"})
		return 0, false
	}
	return uint(id), true
}

func requireAdmin(c *gin.Context) {
	token := c.GetHeader("X-Admin-Token")
	if adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin token required"})
		return
	}
	c.Next()
}

func writeError(c *gin.Context, err error) {
	var conflict *booking.ConflictError
	var rangeErr *booking.RangeError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":     err.Error(),
			"conflicts": conflictsJSON(conflict.Conflicts),
		})
	case errors.As(err, &rangeErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "reason": rangeErr.Reason})
	case errors.Is(err, booking.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrDependencyFailure):
		log.Printf("Dependency failure: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
	default:
		log.Printf("Unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func reservationJSON(r *models.Reservation) gin.H {
	body := gin.H{
		"reservationUid": r.ReservationUid,
		"placeId":        r.PlaceID,
		"checkIn":        r.CheckIn.Format(booking.DateLayout),
		"checkOut":       r.CheckOut.Format(booking.DateLayout),
		"nights":         r.Nights,
		"totalPrice":     r.TotalPrice,
		"status":         r.Status,
		"paymentStatus":  r.PaymentStatus,
		"channel":        r.Channel,
		"holdExpiresAt":  r.HoldExpiresAt.Format(time.RFC3339),
	}
	if r.RoomID != nil {
		body["roomId"] = *r.RoomID
	}
	if r.SlipURL != "" {
		body["slipUrl"] = r.SlipURL
	}
	if r.RejectReason != "" {
		body["rejectReason"] = r.RejectReason
	}
	return body
}

func conflictsJSON(conflicts []booking.Conflict) []gin.H {
	items := make([]gin.H, len(conflicts))
	for i, c := range conflicts {
		items[i] = gin.H{
			"reservationUid": c.ReservationUid,
			"checkIn":        c.CheckIn.Format(booking.DateLayout),
			"checkOut":       c.CheckOut.Format(booking.DateLayout),
			"status":         c.Status,
		}
	}
	return items
}

func outcomeJSON(out *booking.Outcome) gin.H {
	body := reservationJSON(out.Reservation)
	body["applied"] = out.Applied
	return body
}

func parseID(c *gin.Context, value, name string) (uint, bool) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func parseDates(c *gin.Context, checkIn, checkOut string) (time.Time, time.Time, bool) {
	in, err := booking.ParseDay(checkIn)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return time.Time{}, time.Time{}, false
	}
	out, err := booking.ParseDay(checkOut)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return time.Time{}, time.Time{}, false
	}
	return in, out, true
}

func createReservation(channel models.Channel) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			return
		}
		var request struct {
			PlaceID  uint   `json:"placeId" binding:"required"`
			RoomID   *uint  `json:"roomId"`
			CheckIn  string `json:"checkIn" binding:"required"`
			CheckOut string `json:"checkOut" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
		checkIn, checkOut, ok := parseDates(c, request.CheckIn, request.CheckOut)
		if !ok {
			return
		}

		reservation, err := svc.Admit(c.Request.Context(), booking.AdmitRequest{
			UserID:   uid,
			PlaceID:  request.PlaceID,
			RoomID:   request.RoomID,
			CheckIn:  checkIn,
			CheckOut: checkOut,
			Channel:  channel,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, reservationJSON(reservation))
	}
}

func listReservations(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	reservations, err := svc.ListReservations(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	items := make([]gin.H, len(reservations))
	for i := range reservations {
		items[i] = reservationJSON(&reservations[i])
	}
	c.JSON(http.StatusOK, items)
}

func getReservation(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	reservation, err := svc.GetReservation(c.Request.Context(), c.Param("uid"), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservationJSON(reservation))
}

func startCheckout(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	checkout, err := svc.StartCheckout(c.Request.Context(), c.Param("uid"), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	body := reservationJSON(checkout.Reservation)
	body["clientSecret"] = checkout.ClientSecret
	body["amount"] = checkout.Amount
	body["currency"] = checkout.Currency
	c.JSON(http.StatusOK, body)
}

func submitSlip(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var request struct {
		SlipURL string `json:"slipUrl" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	out, err := svc.SubmitSlip(c.Request.Context(), c.Param("uid"), uid, request.SlipURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomeJSON(out))
}

func cancelReservation(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	out, err := svc.Cancel(c.Request.Context(), c.Param("uid"), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomeJSON(out))
}

func reviewSlip(c *gin.Context) {
	var request struct {
		Approve *bool  `json:"approve" binding:"required"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	out, err := svc.ReviewSlip(c.Request.Context(), c.Param("uid"), *request.Approve, request.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomeJSON(out))
}

func runSweep(c *gin.Context) {
	result, err := svc.Sweep(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func paymentWebhook(c *gin.Context) {
	if webhooks == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment webhooks are not configured"})
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}
	event, ok, err := webhooks.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if err := handlePaymentEvent(c.Request.Context(), event); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// handlePaymentEvent applies an inbound outcome. Outcomes for unknown
// reservations or ones that no longer accept them are dropped; only
// dependency failures are returned for redelivery.
func handlePaymentEvent(ctx context.Context, event events.PaymentEvent) error {
	out, err := svc.ApplyPaymentEvent(ctx, event)
	switch {
	case err == nil:
		if !out.Applied {
			log.Printf("Payment event %s for %s already applied", event.Type, event.ReservationUid)
		}
		return nil
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, booking.ErrInvalidState):
		log.Printf("Dropping payment event %s for %s: %v", event.Type, event.ReservationUid, err)
		return nil
	}
	return err
}

func getPlace(c *gin.Context) {
	placeID, ok := parseID(c, c.Param("placeId"), "placeId")
	if !ok {
		return
	}
	place, err := svc.GetPlace(c.Request.Context(), placeID)
	if err != nil {
		writeError(c, err)
		return
	}
	rooms := make([]gin.H, len(place.Rooms))
	for i, room := range place.Rooms {
		rooms[i] = gin.H{
			"id":           room.ID,
			"name":         room.Name,
			"nightlyPrice": room.NightlyPrice,
			"isBooked":     room.IsBooked,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           place.ID,
		"name":         place.Name,
		"city":         place.City,
		"nightlyPrice": place.NightlyPrice,
		"rooms":        rooms,
	})
}

func getAvailability(c *gin.Context) {
	placeID, ok := parseID(c, c.Param("placeId"), "placeId")
	if !ok {
		return
	}
	var roomID *uint
	if value := c.Query("roomId"); value != "" {
		id, ok := parseID(c, value, "roomId")
		if !ok {
			return
		}
		roomID = &id
	}
	checkIn, checkOut, ok := parseDates(c, c.Query("checkIn"), c.Query("checkOut"))
	if !ok {
		return
	}

	availability, err := svc.CheckAvailability(c.Request.Context(), placeID, roomID, checkIn, checkOut)
	if err != nil {
		writeError(c, err)
		return
	}
	body := gin.H{
		"placeId":    availability.Inventory.PlaceID,
		"checkIn":    availability.Range.CheckIn.Format(booking.DateLayout),
		"checkOut":   availability.Range.CheckOut.Format(booking.DateLayout),
		"nights":     availability.Nights,
		"totalPrice": availability.TotalPrice,
		"available":  availability.Available(),
		"conflicts":  conflictsJSON(availability.Conflicts),
	}
	if availability.Inventory.RoomID != nil {
		body["roomId"] = *availability.Inventory.RoomID
	}
	c.JSON(http.StatusOK, body)
}

func healthCheck(ctx *gin.Context) {
	sqlDB, err := db.DB()
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database connection failed",
			"error":   err.Error(),
		})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "UP"})
}
