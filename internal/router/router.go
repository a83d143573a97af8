// Package router decides which platform carries each outbound message
// and drives the dispatch: transcode, send, and state bookkeeping.
package router

import (
	"context"

	"github.com/nyaruka/phonenumbers"
	"github.com/pkg/errors"

	"github.com/nimasrn/messaging-gateway/internal/capability"
	gateway "github.com/nimasrn/messaging-gateway/internal/gateways"
	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/internal/transcode"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
)

// Failure descriptions stored on messages the router gives up on.
const (
	failInvalidMSISDN  = "Invalid MSISDN"
	failBadOverride    = "Invalid transport override"
	failNoRCS          = "MSISDN does not support RCS"
	failNoSMSAgent     = "Brand does not support SMS"
	failNoRCSAgent     = "Brand does not support RCS"
	failNoGBMAgent     = "Brand does not support Business Messages"
	failNoConversation = "Not a valid conversation"
	failInvalidMessage = "Invalid message"
)

type GBMSender interface {
	SendMessage(ctx context.Context, conversationID string, body []byte) (string, error)
	SendEvent(ctx context.Context, conversationID, eventID string, body []byte) error
}

type RCSSender interface {
	SendMessage(ctx context.Context, agent *model.RCSAgent, msisdn, messageID string, body []byte) (string, error)
	SendEvent(ctx context.Context, agent *model.RCSAgent, msisdn, eventID string, body []byte) error
}

type SMSSender interface {
	Send(ctx context.Context, agent *model.SMSAgent, to, body, mediaURL string) (string, error)
}

// VSMSProvider is the Verified SMS surface the router needs: key
// discovery for unknown recipients and hash registration before a
// carrier send.
type VSMSProvider interface {
	GetUserKey(ctx context.Context, msisdn string) (string, error)
	RegisterMessages(ctx context.Context, messages []gateway.VSMSMessage) error
}

// Config carries the non-dependency knobs.
type Config struct {
	// CalendarBaseURL is the public base for calendar fallback links.
	CalendarBaseURL string
}

type Router struct {
	config   Config
	messages *repository.MessageRepository
	brands   *repository.BrandRepository
	registry *capability.Registry
	vsmsKeys *repository.VSMSKeyRepository

	gbm  GBMSender
	rcs  RCSSender
	sms  SMSSender
	vsms VSMSProvider
}

func New(
	config Config,
	messages *repository.MessageRepository,
	brands *repository.BrandRepository,
	registry *capability.Registry,
	vsmsKeys *repository.VSMSKeyRepository,
	gbm GBMSender,
	rcs RCSSender,
	sms SMSSender,
	vsms VSMSProvider,
) *Router {
	return &Router{
		config:   config,
		messages: messages,
		brands:   brands,
		registry: registry,
		vsmsKeys: vsmsKeys,
		gbm:      gbm,
		rcs:      rcs,
		sms:      sms,
		vsms:     vsms,
	}
}

// Dispatch routes and sends one outbound message. A nil return means
// the message reached a settled state (dispatched or failed with a
// description); a non-nil return means a transient problem worth a
// redelivery.
func (r *Router) Dispatch(ctx context.Context, messageID string) error {
	msg, err := r.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.Direction != model.DirectionOutgoing {
		logger.Warn("dispatch called for inbound message", "message_id", messageID)
		return nil
	}
	if msg.State != model.StateAccepted {
		// Redelivery of an already-settled message.
		return nil
	}

	switch msg.Channel {
	case model.ChannelGBM:
		return r.dispatchGBM(ctx, msg)
	case model.ChannelRCS:
		return r.dispatchRCS(ctx, msg)
	case model.ChannelSMS:
		return r.dispatchMSISDN(ctx, msg)
	default:
		_, err := r.messages.MarkFailed(ctx, msg.ID, failInvalidMessage)
		return err
	}
}

// fail settles a message with a failure description. Losing a state
// race here is fine: somebody else settled it first.
func (r *Router) fail(ctx context.Context, msg *model.Message, description string) error {
	_, err := r.messages.MarkFailed(ctx, msg.ID, description)
	if errors.Is(err, repository.ErrStaleTransition) {
		return nil
	}
	return err
}

// settleSendError folds a send error into message state: definitive
// platform rejections fail the message, transport errors bubble up for
// retry.
func (r *Router) settleSendError(ctx context.Context, msg *model.Message, err error) error {
	var pe *gateway.PlatformError
	if errors.As(err, &pe) {
		logger.Warn("platform rejected message", "message_id", msg.ID, "status", pe.StatusCode, "description", pe.Description)
		return r.fail(ctx, msg, pe.Description)
	}
	return err
}

func (r *Router) dispatchGBM(ctx context.Context, msg *model.Message) error {
	if _, err := r.brands.GetGBMAgentByBrand(ctx, msg.BrandID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return r.fail(ctx, msg, failNoGBMAgent)
		}
		return err
	}

	// Agents may only message conversations the user opened.
	ok, err := r.messages.HasInbound(ctx, model.ChannelGBM, msg.PlatformConversationID)
	if err != nil {
		return err
	}
	if !ok {
		return r.fail(ctx, msg, failNoConversation)
	}

	var rep *model.Representative
	if msg.RepresentativeID != nil {
		rep, err = r.brands.GetRepresentative(ctx, *msg.RepresentativeID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}

	req, err := transcode.EncodeGBM(msg, rep)
	if err != nil {
		if transcode.IsValidation(err) {
			return r.fail(ctx, msg, failInvalidMessage)
		}
		return err
	}

	switch req.Kind {
	case transcode.GBMKindEvent:
		if err := r.gbm.SendEvent(ctx, msg.PlatformConversationID, msg.ID, req.Body); err != nil {
			return r.settleSendError(ctx, msg, err)
		}
		_, err = r.messages.UpdateState(ctx, msg.ID, model.StateDispatched, nil)
	case transcode.GBMKindMessage:
		platformID, sendErr := r.gbm.SendMessage(ctx, msg.PlatformConversationID, req.Body)
		if sendErr != nil {
			return r.settleSendError(ctx, msg, sendErr)
		}
		_, err = r.messages.MarkDispatched(ctx, msg.ID, platformID)
	default:
		// Nothing to put on the wire; the message is done.
		_, err = r.messages.UpdateState(ctx, msg.ID, model.StateDispatched, nil)
	}
	if errors.Is(err, repository.ErrStaleTransition) {
		return nil
	}
	return err
}

func (r *Router) dispatchRCS(ctx context.Context, msg *model.Message) error {
	e164, ok := normalizeMSISDN(msg.PlatformConversationID)
	if !ok {
		return r.fail(ctx, msg, failInvalidMSISDN)
	}

	agent, err := r.brands.GetRCSAgentByBrand(ctx, msg.BrandID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return r.fail(ctx, msg, failNoRCSAgent)
		}
		return err
	}

	record, err := r.registry.Lookup(ctx, agent, e164, msg.ID)
	if err != nil {
		return err
	}
	if !record.SupportsRCS {
		return r.fail(ctx, msg, failNoRCS)
	}

	return r.sendRCS(ctx, msg, agent, e164)
}

func (r *Router) sendRCS(ctx context.Context, msg *model.Message, agent *model.RCSAgent, msisdn string) error {
	brand, err := r.brands.Get(ctx, msg.BrandID)
	if err != nil {
		return err
	}

	req, err := transcode.EncodeRCS(msg, brand.ClientID, r.config.CalendarBaseURL)
	if err != nil {
		if transcode.IsValidation(err) {
			return r.fail(ctx, msg, failInvalidMessage)
		}
		return err
	}

	switch req.Kind {
	case transcode.RCSKindEvent:
		if err := r.rcs.SendEvent(ctx, agent, msisdn, msg.ID, req.Body); err != nil {
			return r.settleSendError(ctx, msg, err)
		}
		_, err = r.messages.UpdateState(ctx, msg.ID, model.StateDispatched, nil)
	case transcode.RCSKindMessage:
		platformID, sendErr := r.rcs.SendMessage(ctx, agent, msisdn, msg.ID, req.Body)
		if sendErr != nil {
			return r.settleSendError(ctx, msg, sendErr)
		}
		_, err = r.messages.MarkDispatched(ctx, msg.ID, platformID)
	default:
		_, err = r.messages.UpdateState(ctx, msg.ID, model.StateDispatched, nil)
	}
	if errors.Is(err, repository.ErrStaleTransition) {
		return nil
	}
	return err
}

// dispatchMSISDN routes a phone-number message: RCS when the recipient
// supports it and the sender did not pin SMS, carrier SMS otherwise.
func (r *Router) dispatchMSISDN(ctx context.Context, msg *model.Message) error {
	e164, ok := normalizeMSISDN(msg.PlatformConversationID)
	if !ok {
		return r.fail(ctx, msg, failInvalidMSISDN)
	}

	override := msg.Meta(model.MetaTransportOverride)
	if override != "" && override != model.TransportSMS && override != model.TransportRCS {
		return r.fail(ctx, msg, failBadOverride)
	}

	if override != model.TransportSMS {
		upgraded, err := r.tryRCSUpgrade(ctx, msg, e164)
		if err != nil {
			return err
		}
		if upgraded {
			return nil
		}
		if override == model.TransportRCS {
			return r.fail(ctx, msg, failNoRCS)
		}
	}

	return r.sendSMS(ctx, msg, e164)
}

// tryRCSUpgrade attempts the RCS leg of an MSISDN dispatch. It reports
// whether the message was handled; false means fall through to SMS.
func (r *Router) tryRCSUpgrade(ctx context.Context, msg *model.Message, e164 string) (bool, error) {
	agent, err := r.brands.GetRCSAgentByBrand(ctx, msg.BrandID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	record, err := r.registry.Lookup(ctx, agent, e164, msg.ID)
	if err != nil {
		// A dead capability endpoint must not block the SMS fallback.
		logger.Warn("capability lookup failed, falling back to SMS", "message_id", msg.ID, "error", err)
		return false, nil
	}
	if !record.SupportsRCS {
		return false, nil
	}

	msg.SetMeta(model.MetaTransport, model.TransportRCS)
	if err := r.messages.SetMetadata(ctx, msg.ID, msg.Metadata); err != nil {
		return false, err
	}
	return true, r.sendRCS(ctx, msg, agent, e164)
}

func (r *Router) sendSMS(ctx context.Context, msg *model.Message, e164 string) error {
	agent, err := r.brands.GetSMSAgentByBrand(ctx, msg.BrandID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return r.fail(ctx, msg, failNoSMSAgent)
		}
		return err
	}

	req, err := transcode.EncodeSMS(msg, r.config.CalendarBaseURL)
	if err != nil {
		if transcode.IsValidation(err) {
			return r.fail(ctx, msg, failInvalidMessage)
		}
		return err
	}

	msg.SetMeta(model.MetaTransport, model.TransportSMS)

	if req.Skip {
		if err := r.messages.SetMetadata(ctx, msg.ID, msg.Metadata); err != nil {
			return err
		}
		_, err = r.messages.UpdateState(ctx, msg.ID, model.StateDispatched, nil)
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil
		}
		return err
	}

	if err := r.prepareVSMS(ctx, msg, agent, e164, req.Body); err != nil {
		return err
	}
	if err := r.messages.SetMetadata(ctx, msg.ID, msg.Metadata); err != nil {
		return err
	}

	sid, err := r.sms.Send(ctx, agent, e164, req.Body, req.MediaURL)
	if err != nil {
		return r.settleSendError(ctx, msg, err)
	}

	_, err = r.messages.MarkDispatched(ctx, msg.ID, sid)
	if errors.Is(err, repository.ErrStaleTransition) {
		return nil
	}
	return err
}

// prepareVSMS registers the message hash with Verified SMS when both
// the agent and the recipient are enrolled. Registration happens
// before the carrier send so receiving devices can verify on arrival.
func (r *Router) prepareVSMS(ctx context.Context, msg *model.Message, agent *model.SMSAgent, e164, body string) error {
	if r.vsms == nil || agent.VSMSPrivateKeyPEM == "" || agent.VSMSAgentID == "" {
		return nil
	}

	publicKey, err := r.lookupVSMSKey(ctx, e164)
	if err != nil {
		return err
	}
	if publicKey == "" {
		msg.SetMeta(model.MetaVSMS, "user_disabled")
		return nil
	}
	msg.SetMeta(model.MetaVSMS, "user_enabled")

	shared, err := gateway.DeriveSharedKey(agent.VSMSPrivateKeyPEM, publicKey)
	if err != nil {
		logger.Error("verified sms key exchange failed", "message_id", msg.ID, "error", err)
		return nil
	}
	hash, err := gateway.MessageHash(shared, body)
	if err != nil {
		return err
	}
	token, err := gateway.RateLimitToken(shared)
	if err != nil {
		return err
	}

	return r.vsms.RegisterMessages(ctx, []gateway.VSMSMessage{{
		AgentID:        agent.VSMSAgentID,
		Hash:           hash,
		RateLimitToken: token,
		PostbackData:   gateway.EncodeVSMSPostback(msg.ID),
	}})
}

// lookupVSMSKey resolves a recipient's Verified SMS key, caching both
// enrolled and unenrolled answers.
func (r *Router) lookupVSMSKey(ctx context.Context, e164 string) (string, error) {
	cached, err := r.vsmsKeys.Get(ctx, e164)
	if err == nil {
		return cached.PublicKey, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	publicKey, err := r.vsms.GetUserKey(ctx, e164)
	if err != nil {
		return "", err
	}
	if _, err := r.vsmsKeys.Upsert(ctx, &model.VSMSKey{MSISDN: e164, PublicKey: publicKey}); err != nil {
		return "", err
	}
	return publicKey, nil
}

// normalizeMSISDN validates a raw address and formats it E.164.
// Addresses must carry their country code; there is no default region.
func normalizeMSISDN(raw string) (string, bool) {
	parsed, err := phonenumbers.Parse(raw, "")
	if err != nil {
		return "", false
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", false
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), true
}
