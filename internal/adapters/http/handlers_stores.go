package web

import (
	"log/slog"
	"net/http"

	"storefinder/internal/application/orchestrators"
	"storefinder/internal/application/projections"
	"storefinder/internal/domain/store"
)

// NoStoresNearbyMessage is the 404 body for an empty nearby search.
const NoStoresNearbyMessage = "Sorry, there are no stores in your area."

// storeRequest is the create/update body.
type storeRequest struct {
	Name        string  `json:"name"`
	Region      string  `json:"region"`
	Address     string  `json:"address"`
	Active      *bool   `json:"active"`
	PhoneNumber string  `json:"phoneNumber"`
	Email       string  `json:"email"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	StoreType   string  `json:"storeType"`
	Rating      int     `json:"rating"`
	DeliveryFee int64   `json:"deliveryFee"`
}

func (req storeRequest) attributes() orchestrators.StoreAttributes {
	return orchestrators.StoreAttributes{
		Name:        req.Name,
		Region:      req.Region,
		Address:     req.Address,
		Active:      req.Active,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		StoreType:   req.StoreType,
		Rating:      req.Rating,
		DeliveryFee: req.DeliveryFee,
	}
}

// nearbyRequest is the nearby-search body.
type nearbyRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// decodeStoreRequest validates against the store schema, then decodes strictly.
func (s *server) decodeStoreRequest(w http.ResponseWriter, r *http.Request) (storeRequest, error) {
	var req storeRequest
	body, err := readBody(w, r)
	if err != nil {
		return req, err
	}
	if err := validate(s.schemas.store, body); err != nil {
		return req, err
	}
	return req, strictDecode(body, &req)
}

func (s *server) readDeps() projections.GetStoresDeps {
	return projections.GetStoresDeps{StoreStore: s.Stores}
}

func (s *server) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := projections.QueryAllStores(r.Context(), s.readDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stores)
}

func (s *server) handleListActiveStores(w http.ResponseWriter, r *http.Request) {
	stores, err := projections.QueryActiveStores(r.Context(), s.readDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stores)
}

func (s *server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := projections.QueryStoreByID(r.Context(), id, s.readDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) handleGetStoreByEmail(w http.ResponseWriter, r *http.Request) {
	st, err := projections.QueryStoreByEmail(r.Context(), r.PathValue("email"), s.readDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) handleStoresByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, err := pathUUID(r, "ownerId")
	if err != nil {
		writeError(w, err)
		return
	}
	stores, err := projections.QueryStoresByOwner(r.Context(), projections.StoresByOwnerQuery{OwnerID: ownerID}, s.readDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stores)
}

func (s *server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeStoreRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := orchestrators.ExecuteCreateStore(r.Context(),
		orchestrators.CreateStoreInput{StoreAttributes: req.attributes()},
		orchestrators.CreateStoreDeps{StoreRepo: s.Stores, GenerateID: s.GenerateID, Now: s.Now})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/stores/"+st.ID)
	writeJSON(w, http.StatusCreated, st)
}

func (s *server) handleUpdateStore(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	req, err := s.decodeStoreRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := orchestrators.ExecuteUpdateStore(r.Context(),
		orchestrators.UpdateStoreInput{StoreID: id, StoreAttributes: req.attributes()},
		orchestrators.UpdateStoreDeps{StoreRepo: s.Stores, Locker: s.Locker, Now: s.Now})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	err = orchestrators.ExecuteDeleteStore(r.Context(),
		orchestrators.DeleteStoreInput{StoreID: id},
		orchestrators.DeleteStoreDeps{StoreRepo: s.Stores, Locker: s.Locker})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownerPath parses the store and owner ids shared by the owner routes.
func ownerPath(r *http.Request) (storeID, ownerID string, err error) {
	if storeID, err = pathUUID(r, "storeId"); err != nil {
		return "", "", err
	}
	if ownerID, err = pathUUID(r, "ownerId"); err != nil {
		return "", "", err
	}
	return storeID, ownerID, nil
}

func (s *server) handleAddOwner(w http.ResponseWriter, r *http.Request) {
	storeID, ownerID, err := ownerPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := orchestrators.ExecuteAddOwner(r.Context(),
		orchestrators.AddOwnerInput{StoreID: storeID, OwnerID: ownerID},
		orchestrators.AddOwnerDeps{StoreRepo: s.Stores, Events: s.Events, Locker: s.Locker, Metrics: s.Metrics, Now: s.Now})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) handleRemoveOwner(w http.ResponseWriter, r *http.Request) {
	storeID, ownerID, err := ownerPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := orchestrators.ExecuteRemoveOwner(r.Context(),
		orchestrators.RemoveOwnerInput{StoreID: storeID, OwnerID: ownerID},
		orchestrators.RemoveOwnerDeps{StoreRepo: s.Stores, Locker: s.Locker, Metrics: s.Metrics, Now: s.Now})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) handleNearbyStores(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := validate(s.schemas.nearby, body); err != nil {
		writeError(w, err)
		return
	}
	var req nearbyRequest
	if err := strictDecode(body, &req); err != nil {
		writeError(w, err)
		return
	}

	nearby, err := projections.QueryNearbyStores(r.Context(),
		projections.NearbyStoresQuery{Latitude: req.Latitude, Longitude: req.Longitude},
		projections.NearbyStoresDeps{StoreStore: s.Stores, Metrics: s.Metrics})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(nearby) == 0 {
		slog.Debug("nearby_empty", "latitude", req.Latitude, "longitude", req.Longitude)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(NoStoresNearbyMessage))
		return
	}
	writeJSON(w, http.StatusOK, nearby)
}
