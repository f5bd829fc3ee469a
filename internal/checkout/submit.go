package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/storefront-checkout/internal/auth"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/events"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/payment"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

const verifyFailedMessage = "We could not confirm your payment. If money was deducted, please contact support with your order id."

// Submit places the order for the selected payment method. requestID becomes
// the session's active request; a second submit while it runs is rejected.
// The remote sequence runs detached from ctx so a client disconnect cannot
// stop it halfway.
func (s *Service) Submit(ctx context.Context, userID, sessionID, requestID string) (View, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return View{}, common.Validation("request_id is required")
	}
	var (
		sess    Session
		contact auth.User
	)
	err := s.withLock(ctx, sessionID, func(ctx context.Context) error {
		cur, err := s.load(ctx, userID, sessionID)
		if err != nil {
			return err
		}
		if cur.State.InFlight() {
			obs.Inc(s.Submissions, string(cur.Method), "duplicate")
			return errInProgress()
		}
		if err := cur.blocker(); err != nil {
			return err
		}
		if cur.Method == pricing.MethodOnline {
			u, err := s.Contacts.Me(ctx, userID)
			if err != nil {
				return common.Upstream(err)
			}
			if u.Phone == "" && u.Email == "" {
				return errNoContact()
			}
			contact = u
		}
		cur.State = StateCODSubmitting
		if cur.Method == pricing.MethodOnline {
			cur.State = StateOnlineSubmitting
		}
		cur.ActiveRequestID = requestID
		cur.Failure, cur.Message, cur.Payment = nil, "", nil
		cur.OrderID, cur.GatewayOrderID = "", ""
		if err := s.save(ctx, &cur); err != nil {
			return common.Upstream(err)
		}
		sess = cur
		return nil
	})
	if err != nil {
		return View{}, err
	}

	runCtx, cancel := s.detached(ctx)
	defer cancel()
	runCtx, span := otel.Tracer("checkout").Start(runCtx, "checkout.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("checkout.session_id", sess.ID),
		attribute.String("checkout.method", string(sess.Method)),
		attribute.String("checkout.mode", string(sess.Mode)),
	)

	var v View
	if sess.Method == pricing.MethodCOD {
		v, err = s.submitCOD(runCtx, sess)
	} else {
		v, err = s.submitOnline(runCtx, sess, contact)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
	}
	return v, err
}

func (s *Service) submitCOD(ctx context.Context, sess Session) (View, error) {
	bill := sess.bill(s.Policy)
	o, err := s.Orders.Place(ctx, s.newOrder(sess, bill, order.StatusPlaced))
	if err != nil {
		obs.Inc(s.Submissions, string(pricing.MethodCOD), "error")
		return s.fail(ctx, sess, err)
	}
	s.afterPayment(ctx, sess, o.ID, bill)
	s.emit(ctx, events.TopicOrderPlaced, o.ID, map[string]any{
		"order_id": o.ID, "user_id": sess.UserID, "method": pricing.MethodCOD,
		"amount": bill.FinalAmount.StringFixed(2), "currency": s.Currency, "phone": sess.phone(),
	})
	obs.Inc(s.Submissions, string(pricing.MethodCOD), "placed")
	return s.finish(ctx, sess, func(cur *Session) {
		cur.State = StateDone
		cur.OrderID = o.ID
	})
}

func (s *Service) submitOnline(ctx context.Context, sess Session, contact auth.User) (View, error) {
	bill := sess.bill(s.Policy)
	o, err := s.Orders.Place(ctx, s.newOrder(sess, bill, order.StatusPending))
	if err != nil {
		obs.Inc(s.Submissions, string(pricing.MethodOnline), "error")
		return s.fail(ctx, sess, err)
	}
	gw, err := s.Gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:   pricing.ToMinorUnits(bill.FinalAmount),
		Currency: s.Currency,
		Receipt:  o.ID,
		Notes:    map[string]string{"session_id": sess.ID, "user_id": sess.UserID},
	})
	if err != nil {
		obs.Inc(s.Submissions, string(pricing.MethodOnline), "gateway_error")
		return s.fail(ctx, sess, fmt.Errorf("create gateway order for %s: %w", o.ID, err))
	}
	if err := s.Orders.AttachGatewayOrder(ctx, o.ID, gw.ID); err != nil {
		obs.Inc(s.Submissions, string(pricing.MethodOnline), "error")
		return s.fail(ctx, sess, fmt.Errorf("attach gateway order %s: %w", gw.ID, err))
	}
	opts := PaymentOptions{
		Key:            s.GatewayKey,
		Amount:         gw.Amount,
		Currency:       gw.Currency,
		Name:           s.MerchantName,
		Description:    "Order " + o.ID,
		GatewayOrderID: gw.ID,
		Prefill:        Prefill{Name: contact.Name, Contact: contact.Phone, Email: contact.Email},
		ReadOnly:       map[string]bool{"contact": true, "email": true},
	}
	obs.Inc(s.Submissions, string(pricing.MethodOnline), "gateway_order")
	return s.finish(ctx, sess, func(cur *Session) {
		cur.OrderID = o.ID
		cur.GatewayOrderID = gw.ID
		cur.Payment = &opts
	})
}

// CompleteInput carries the hosted checkout result for a submission.
type CompleteInput struct {
	RequestID string           `json:"request_id" validate:"required"`
	Result    payment.Callback `json:"result"`
}

// CompletePayment applies the gateway result. A success is verified before the
// order counts as paid; a user cancel quietly returns to ready; any other
// failure leaves the session failed with the gateway's description.
func (s *Service) CompletePayment(ctx context.Context, userID, sessionID string, in CompleteInput) (View, error) {
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	outcome := in.Result.Outcome()
	var (
		sess    Session
		out     View
		orderID string
	)
	err := s.withLock(ctx, sessionID, func(ctx context.Context) error {
		cur, err := s.load(ctx, userID, sessionID)
		if err != nil {
			return err
		}
		if cur.ActiveRequestID != in.RequestID || cur.State != StateOnlineSubmitting || cur.GatewayOrderID == "" {
			obs.Inc(s.Callbacks, "stale")
			s.Logger.Info().Str("session_id", cur.ID).Str("request_id", in.RequestID).Str("state", string(cur.State)).Msg("discarding stale payment result")
			return staleResult()
		}
		obs.Inc(s.Callbacks, string(outcome))
		orderID = cur.OrderID
		switch outcome {
		case payment.OutcomeCancelled:
			cur.State = StateReady
			resetSubmission(&cur)
		case payment.OutcomeFailed:
			cur.State = StateFailed
			cur.Failure = &Failure{Code: "PAYMENT_FAILED", Message: in.Result.Description()}
			resetSubmission(&cur)
		default:
			cur.State = StateVerifying
		}
		if err := s.save(ctx, &cur); err != nil {
			return common.Upstream(err)
		}
		sess, out = cur, cur.view(s.Policy)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	switch outcome {
	case payment.OutcomeCancelled:
		return out, nil
	case payment.OutcomeFailed:
		s.emit(ctx, events.TopicPaymentFailed, orderID, map[string]any{
			"order_id": orderID, "user_id": userID, "payment_id": in.Result.PaymentID, "reason": in.Result.Description(),
			"phone": sess.phone(),
		})
		return out, paymentFailed("PAYMENT_FAILED", in.Result.Description(), out)
	}
	return s.verify(ctx, sess, in)
}

func (s *Service) verify(ctx context.Context, sess Session, in CompleteInput) (View, error) {
	runCtx, cancel := s.detached(ctx)
	defer cancel()
	runCtx, span := otel.Tracer("checkout").Start(runCtx, "checkout.verify")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.session_id", sess.ID), attribute.String("order.id", sess.OrderID))

	ok, err := s.Gateway.Verify(runCtx, payment.VerifyRequest{
		PaymentID:      in.Result.PaymentID,
		GatewayOrderID: sess.GatewayOrderID,
		Signature:      in.Result.Signature,
		LocalOrderID:   sess.OrderID,
	})
	if err != nil || !ok {
		result := "unverified"
		if err != nil {
			result = "error"
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "payment not verified")
		obs.Inc(s.Verifies, result)
		s.Logger.Warn().Err(err).Str("order_id", sess.OrderID).Str("payment_id", in.Result.PaymentID).Msg("payment verification failed")
		s.emit(runCtx, events.TopicPaymentFailed, sess.OrderID, map[string]any{
			"order_id": sess.OrderID, "user_id": sess.UserID, "payment_id": in.Result.PaymentID, "reason": result,
			"phone": sess.phone(),
		})
		v, ferr := s.finish(runCtx, sess, func(cur *Session) {
			cur.State = StateFailed
			cur.Failure = &Failure{Code: "PAYMENT_NOT_VERIFIED", Message: verifyFailedMessage}
			resetSubmission(cur)
		})
		if ferr != nil {
			return View{}, ferr
		}
		return v, paymentFailed("PAYMENT_NOT_VERIFIED", verifyFailedMessage, v)
	}

	obs.Inc(s.Verifies, "verified")
	bill := sess.bill(s.Policy)
	s.afterPayment(runCtx, sess, sess.OrderID, bill)
	s.emit(runCtx, events.TopicPaymentVerified, sess.OrderID, map[string]any{
		"order_id": sess.OrderID, "user_id": sess.UserID, "payment_id": in.Result.PaymentID,
		"amount": bill.FinalAmount.StringFixed(2), "currency": s.Currency, "phone": sess.phone(),
	})
	return s.finish(runCtx, sess, func(cur *Session) {
		cur.State = StateDone
		cur.Payment = nil
	})
}

func resetSubmission(s *Session) {
	s.ActiveRequestID = ""
	s.Payment = nil
	s.OrderID, s.GatewayOrderID = "", ""
}

// fail records a failed submission and returns the failure with the session.
func (s *Service) fail(ctx context.Context, sess Session, cause error) (View, error) {
	s.Logger.Error().Err(cause).Str("session_id", sess.ID).Str("method", string(sess.Method)).Msg("checkout submit failed")
	v, err := s.finish(ctx, sess, func(cur *Session) {
		cur.State = StateFailed
		cur.Failure = &Failure{Code: "ORDER_FAILED", Message: "we could not place your order, please try again"}
		resetSubmission(cur)
	})
	if err != nil {
		return View{}, err
	}
	return v, placeFailed(cause, v)
}

// finish applies the result of a remote sequence, unless the session moved
// on (abandoned, or a different request is now active).
func (s *Service) finish(ctx context.Context, sess Session, apply func(*Session)) (View, error) {
	var out View
	err := s.withLock(ctx, sess.ID, func(ctx context.Context) error {
		cur, err := s.Sessions.Get(ctx, sess.ID)
		if errors.Is(err, ErrSessionNotFound) {
			s.Logger.Info().Str("session_id", sess.ID).Str("request_id", sess.ActiveRequestID).Msg("discarding result for abandoned checkout")
			return errGone()
		}
		if err != nil {
			return common.Upstream(err)
		}
		if cur.ActiveRequestID != sess.ActiveRequestID {
			s.Logger.Info().Str("session_id", sess.ID).Str("request_id", sess.ActiveRequestID).Msg("discarding stale checkout result")
			return staleResult()
		}
		apply(&cur)
		if err := s.save(ctx, &cur); err != nil {
			return common.Upstream(err)
		}
		out = cur.view(s.Policy)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	if out.State == StateDone && s.AppState != nil {
		st, err := s.AppState.Load(ctx, sess.UserID)
		if err != nil {
			s.Logger.Warn().Err(err).Str("user_id", sess.UserID).Msg("app state refresh failed")
		} else {
			out.AppState = &st
		}
	}
	return out, nil
}

// afterPayment runs the best-effort steps once an order is placed or paid.
// Failures are logged; the order stands either way.
func (s *Service) afterPayment(ctx context.Context, sess Session, orderID string, bill pricing.Bill) {
	if sess.Mode == ModeCart {
		if err := s.Cart.Clear(ctx, sess.UserID); err != nil {
			s.Logger.Warn().Err(err).Str("order_id", orderID).Str("user_id", sess.UserID).Msg("cart clear failed after order")
		}
	}
	if sess.Coupon != nil {
		if err := s.Coupons.RecordUsage(ctx, *sess.Coupon, sess.UserID, orderID, bill.CouponDiscount); err != nil {
			s.Logger.Warn().Err(err).Str("order_id", orderID).Str("coupon", sess.Coupon.Terms.Code).Msg("coupon usage not recorded")
		}
	}
}

func (s *Service) emit(ctx context.Context, topic, aggregateID string, payload any) {
	if s.Events == nil || aggregateID == "" {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, aggregateID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Str("aggregate_id", aggregateID).Msg("event not delivered")
	}
}

func (s *Service) newOrder(sess Session, bill pricing.Bill, status string) order.New {
	a := sess.Address
	n := order.New{
		UserID:        sess.UserID,
		PaymentMethod: sess.Method,
		Status:        status,
		PaymentStatus: order.PaymentPending,
		Address: order.ShippingAddress{
			Name: a.Name, Phone: a.Phone, Line1: a.Line1, Line2: a.Line2, Landmark: a.Landmark,
			City: a.City, State: a.State, Pincode: a.Pincode,
		},
		Bill:     bill,
		Currency: s.Currency,
		Items:    sess.inStock(),
	}
	if sess.Coupon != nil {
		n.CouponCode = sess.Coupon.Terms.Code
	}
	return n
}

func (s *Service) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.SubmitTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
