package hub

import (
	"strangers/pkg/types"
)

func (h *Hub) handleEvent(ev *types.Event) {
	if ev == nil {
		return
	}
	if _, exists := h.sessions.Get(ev.ConnID); !exists {
		h.logger.Debug("event from unknown connection", "conn", ev.ConnID, "event", ev.Name)
		return
	}
	if !types.IsInbound(ev.Name) {
		h.logger.Debug("dropping event", "conn", ev.ConnID, "event", ev.Name, "error", types.ErrUnknownEvent)
		return
	}
	if err := h.limiter.Check(ev.ConnID, ev.Name); err != nil {
		h.logger.Warn("dropping event", "conn", ev.ConnID, "event", ev.Name, "error", err)
		return
	}

	var err error
	switch ev.Name {
	case types.EventFindStranger:
		err = h.findStranger(ev)
	case types.EventWebRTCSignal:
		err = h.relaySignal(ev)
	case types.EventSendMessage:
		err = h.relayMessage(ev)
	case types.EventMediaStatusChanged:
		err = h.relayMediaStatus(ev)
	case types.EventDisconnectChat:
		h.router.EndChat(ev.ConnID, types.EndReasonEnded)
	}

	if err != nil {
		h.logger.Debug("dropping event", "conn", ev.ConnID, "event", ev.Name, "error", err)
	}
}

func decode(ev *types.Event, v any) error {
	if ev.Payload == nil || ev.Payload.Empty() {
		return types.ErrMissingPayload
	}
	return ev.Payload.Decode(v)
}

func (h *Hub) findStranger(ev *types.Event) error {
	var req types.FindStrangerRequest
	if err := decode(ev, &req); err != nil {
		return err
	}
	h.matcher.RequestMatch(ev.ConnID, req.Type)
	return nil
}

func (h *Hub) relaySignal(ev *types.Event) error {
	var req types.SignalRequest
	if err := decode(ev, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	h.logger.Debug("relaying signal", "conn", ev.ConnID, "to", req.To, "format", req.Signal.Format(), "bytes", len(req.Signal.Bytes()))
	h.router.RelaySignal(ev.ConnID, req.To, req.Signal)
	return nil
}

func (h *Hub) relayMessage(ev *types.Event) error {
	var req types.SendMessageRequest
	if err := decode(ev, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	return h.router.RelayMessage(ev.ConnID, *req.Text)
}

func (h *Hub) relayMediaStatus(ev *types.Event) error {
	var req types.MediaStatusRequest
	if err := decode(ev, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	return h.router.RelayMediaStatus(ev.ConnID, *req.Video)
}
