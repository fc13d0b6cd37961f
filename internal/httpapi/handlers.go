package httpapi

import (
	"net/http"
	"strings"
	"time"

	"lmdPortal/internal/apperr"
	"lmdPortal/internal/service"
	"lmdPortal/models"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
	return nil
}

func (s *Server) dashboardSummary(w http.ResponseWriter, r *http.Request) error {
	sum, err := s.svc.Dashboard.Summary(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, sum)
	return nil
}

// Shipments

func (s *Server) listShipments(w http.ResponseWriter, r *http.Request) error {
	page, err := queryInt(r, "page")
	if err != nil {
		return err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	q := r.URL.Query()
	out, err := s.svc.Shipments.List(r.Context(), service.ListShipmentsQuery{
		Page:   page,
		Limit:  limit,
		Status: q.Get("status"),
		Search: q.Get("search"),
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (s *Server) createShipment(w http.ResponseWriter, r *http.Request) error {
	var in service.CreateShipmentInput
	if err := decode(r, &in); err != nil {
		return err
	}
	sh, err := s.svc.Shipments.Create(r.Context(), s.actor(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, sh)
	return nil
}

func (s *Server) getShipment(w http.ResponseWriter, r *http.Request) error {
	sh, err := s.svc.Shipments.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, sh)
	return nil
}

type shipmentPatch struct {
	service.TransitionRequest
	service.ShipmentDetailsPatch
}

func (p shipmentPatch) hasDetails() bool {
	d := p.ShipmentDetailsPatch
	return d.ConsigneeName != nil || d.ConsigneePhone != nil || d.Address != nil || d.Weight != nil || d.ServiceType != nil
}

func (s *Server) patchShipment(w http.ResponseWriter, r *http.Request) error {
	var body shipmentPatch
	if err := decode(r, &body); err != nil {
		return err
	}
	var (
		sh  *models.Shipment
		err error
	)
	switch {
	case strings.TrimSpace(body.Status) != "" && body.hasDetails():
		return apperr.Validation("status and detail fields cannot be updated together")
	case strings.TrimSpace(body.Status) != "":
		sh, err = s.svc.Shipments.Transition(r.Context(), s.actor(r), r.PathValue("id"), body.TransitionRequest)
	default:
		sh, err = s.svc.Shipments.UpdateDetails(r.Context(), s.actor(r), r.PathValue("id"), body.ShipmentDetailsPatch)
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, sh)
	return nil
}

type cancelRequest struct {
	Reason             string `json:"reason"`
	CancellationReason string `json:"cancellationReason"`
	Location           string `json:"location"`
}

func (s *Server) cancelShipment(w http.ResponseWriter, r *http.Request) error {
	var body cancelRequest
	if err := decode(r, &body); err != nil {
		return err
	}
	reason := body.CancellationReason
	if strings.TrimSpace(reason) == "" {
		reason = body.Reason
	}
	sh, err := s.svc.Shipments.Cancel(r.Context(), s.actor(r), r.PathValue("id"), reason, body.Location)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, sh)
	return nil
}

// Pickups

func (s *Server) listPickups(w http.ResponseWriter, r *http.Request) error {
	page, err := queryInt(r, "page")
	if err != nil {
		return err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	q := r.URL.Query()
	out, err := s.svc.Pickups.List(r.Context(), service.ListPickupsQuery{
		Page:    page,
		Limit:   limit,
		Status:  q.Get("status"),
		RiderID: q.Get("riderId"),
		Search:  q.Get("search"),
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (s *Server) schedulePickup(w http.ResponseWriter, r *http.Request) error {
	var in service.SchedulePickupInput
	if err := decode(r, &in); err != nil {
		return err
	}
	p, err := s.svc.Pickups.Schedule(r.Context(), s.actor(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, p)
	return nil
}

func (s *Server) getPickup(w http.ResponseWriter, r *http.Request) error {
	p, err := s.svc.Pickups.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

type pickupPatch struct {
	service.PickupTransition
	service.PickupDetailsPatch
}

func (p pickupPatch) hasDetails() bool {
	d := p.PickupDetailsPatch
	return d.Address != nil || d.City != nil || d.ContactName != nil || d.ContactPhone != nil ||
		d.ServiceType != nil || d.ScheduledDate != nil || d.Lat != nil || d.Lng != nil
}

func (s *Server) patchPickup(w http.ResponseWriter, r *http.Request) error {
	var body pickupPatch
	if err := decode(r, &body); err != nil {
		return err
	}
	var (
		p   *models.Pickup
		err error
	)
	switch {
	case strings.TrimSpace(body.Status) != "" && body.hasDetails():
		return apperr.Validation("status and detail fields cannot be updated together")
	case strings.TrimSpace(body.Status) != "":
		p, err = s.svc.Pickups.Transition(r.Context(), s.actor(r), r.PathValue("id"), body.PickupTransition)
	default:
		p, err = s.svc.Pickups.UpdateDetails(r.Context(), s.actor(r), r.PathValue("id"), body.PickupDetailsPatch)
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

func (s *Server) nearestRiders(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	maxKm, err := queryFloat(r, "maxKm")
	if err != nil {
		return err
	}
	out, err := s.svc.Pickups.NearestRiders(r.Context(), r.PathValue("id"), limit, maxKm)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
	return nil
}

// Manifests

func (s *Server) listManifests(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	out, err := s.svc.Manifests.List(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
	return nil
}

type createManifestRequest struct {
	ShipmentIDs []string `json:"shipmentIds"`
}

func (s *Server) createManifest(w http.ResponseWriter, r *http.Request) error {
	var body createManifestRequest
	if err := decode(r, &body); err != nil {
		return err
	}
	m, err := s.svc.Manifests.Create(r.Context(), s.actor(r), body.ShipmentIDs)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, m)
	return nil
}

func (s *Server) getManifest(w http.ResponseWriter, r *http.Request) error {
	m, err := s.svc.Manifests.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, m)
	return nil
}

func (s *Server) patchManifest(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := decode(r, &body); err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(body.Status), string(models.ManifestStatusClosed)) {
		return apperr.Validation("Invalid status update")
	}
	m, err := s.svc.Manifests.Close(r.Context(), s.actor(r), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, m)
	return nil
}

// Riders

func (s *Server) listRiders(w http.ResponseWriter, r *http.Request) error {
	out, err := s.svc.Riders.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
	return nil
}

func (s *Server) createRider(w http.ResponseWriter, r *http.Request) error {
	var in service.CreateRiderInput
	if err := decode(r, &in); err != nil {
		return err
	}
	rd, err := s.svc.Riders.Create(r.Context(), s.actor(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, rd)
	return nil
}

type locationRequest struct {
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
	Status string   `json:"status"`
}

func (s *Server) updateRiderLocation(w http.ResponseWriter, r *http.Request) error {
	var body locationRequest
	if err := decode(r, &body); err != nil {
		return err
	}
	if body.Lat == nil || body.Lng == nil {
		return apperr.Validation("lat and lng are required")
	}
	rd, err := s.svc.Riders.UpdateLocation(r.Context(), s.actor(r), r.PathValue("id"), *body.Lat, *body.Lng, body.Status)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rd)
	return nil
}
