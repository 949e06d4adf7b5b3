package routes

import (
	"fmt"
	"net/http"
	"testing"

	"lan-linkup-server/models"
	"lan-linkup-server/storage"
)

func TestFriendRequestAcceptSymmetry(t *testing.T) {
	app := buildTestApp(t)

	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")

	resp := doRequest(t, app, http.MethodPost, "/api/friend-requests",
		signTestToken(alice.ID), map[string]interface{}{"addresseeId": bob.ID})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 sending request, got %d: %s", resp.Code, resp.Body.String())
	}

	var friendship models.Friendship
	decodeBody(t, resp, &friendship)
	if friendship.Status != models.FriendshipStatusPending {
		t.Fatalf("expected pending status, got %q", friendship.Status)
	}

	// pending requests are visible to the addressee
	pending := doRequest(t, app, http.MethodGet, "/api/friend-requests", signTestToken(bob.ID), nil)
	var requests []models.Friendship
	decodeBody(t, pending, &requests)
	if len(requests) != 1 || requests[0].Requester.Username != "alice" {
		t.Fatalf("expected one pending request from alice, got %s", pending.Body.String())
	}

	accept := doRequest(t, app, http.MethodPost,
		fmt.Sprintf("/api/friend-requests/%d/accept", friendship.ID), signTestToken(bob.ID), nil)
	if accept.Code != http.StatusOK {
		t.Fatalf("expected 200 accepting request, got %d", accept.Code)
	}

	for _, u := range []models.User{alice, bob} {
		friends := doRequest(t, app, http.MethodGet, "/api/friends", signTestToken(u.ID), nil)
		var list []models.User
		decodeBody(t, friends, &list)
		if len(list) != 1 {
			t.Fatalf("expected %s to have exactly one friend, got %d", u.Username, len(list))
		}
		if list[0].ID == u.ID {
			t.Fatalf("friend list for %s contains themself", u.Username)
		}
	}
}

func TestFriendRequestDeclineRemovesRow(t *testing.T) {
	app := buildTestApp(t)

	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")

	resp := doRequest(t, app, http.MethodPost, "/api/friend-requests",
		signTestToken(alice.ID), map[string]interface{}{"addresseeId": bob.ID})
	var friendship models.Friendship
	decodeBody(t, resp, &friendship)

	decline := doRequest(t, app, http.MethodPost,
		fmt.Sprintf("/api/friend-requests/%d/decline", friendship.ID), signTestToken(bob.ID), nil)
	if decline.Code != http.StatusOK {
		t.Fatalf("expected 200 declining request, got %d", decline.Code)
	}

	var count int64
	storage.DB.Model(&models.Friendship{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected friendship row removed on decline, got %d rows", count)
	}

	// a declined requester may try again
	retry := doRequest(t, app, http.MethodPost, "/api/friend-requests",
		signTestToken(alice.ID), map[string]interface{}{"addresseeId": bob.ID})
	if retry.Code != http.StatusCreated {
		t.Fatalf("expected 201 re-sending after decline, got %d", retry.Code)
	}
}

func TestDuplicateFriendRequestBlocked(t *testing.T) {
	app := buildTestApp(t)

	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")

	first := doRequest(t, app, http.MethodPost, "/api/friend-requests",
		signTestToken(alice.ID), map[string]interface{}{"addresseeId": bob.ID})
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first request, got %d", first.Code)
	}

	dup := doRequest(t, app, http.MethodPost, "/api/friend-requests",
		signTestToken(alice.ID), map[string]interface{}{"addresseeId": bob.ID})
	if dup.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate request, got %d", dup.Code)
	}

	// the reverse direction is blocked too while a row exists
	reverse := doRequest(t, app, http.MethodPost, "/api/friend-requests",
		signTestToken(bob.ID), map[string]interface{}{"addresseeId": alice.ID})
	if reverse.Code != http.StatusConflict {
		t.Fatalf("expected 409 on reverse-direction request, got %d", reverse.Code)
	}
}

func TestSelfFriendRequestRejected(t *testing.T) {
	app := buildTestApp(t)

	alice := createTestUser(t, "alice")

	resp := doRequest(t, app, http.MethodPost, "/api/friend-requests",
		signTestToken(alice.ID), map[string]interface{}{"addresseeId": alice.ID})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on self friend request, got %d", resp.Code)
	}
}

func TestAcceptByNonAddresseeForbidden(t *testing.T) {
	app := buildTestApp(t)

	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")
	mallory := createTestUser(t, "mallory")

	resp := doRequest(t, app, http.MethodPost, "/api/friend-requests",
		signTestToken(alice.ID), map[string]interface{}{"addresseeId": bob.ID})
	var friendship models.Friendship
	decodeBody(t, resp, &friendship)

	// neither the requester nor a third party may resolve the request
	for _, u := range []models.User{alice, mallory} {
		accept := doRequest(t, app, http.MethodPost,
			fmt.Sprintf("/api/friend-requests/%d/accept", friendship.ID), signTestToken(u.ID), nil)
		if accept.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for %s accepting, got %d", u.Username, accept.Code)
		}
	}

	var stored models.Friendship
	storage.DB.First(&stored, friendship.ID)
	if stored.Status != models.FriendshipStatusPending {
		t.Fatalf("expected request still pending, got %q", stored.Status)
	}
}

func TestUnfriend(t *testing.T) {
	app := buildTestApp(t)

	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")

	resp := doRequest(t, app, http.MethodPost, "/api/friend-requests",
		signTestToken(alice.ID), map[string]interface{}{"addresseeId": bob.ID})
	var friendship models.Friendship
	decodeBody(t, resp, &friendship)

	doRequest(t, app, http.MethodPost,
		fmt.Sprintf("/api/friend-requests/%d/accept", friendship.ID), signTestToken(bob.ID), nil)

	// either side may unfriend; here the original addressee does
	unfriend := doRequest(t, app, http.MethodDelete,
		fmt.Sprintf("/api/friends/%d", alice.ID), signTestToken(bob.ID), nil)
	if unfriend.Code != http.StatusOK {
		t.Fatalf("expected 200 unfriending, got %d", unfriend.Code)
	}

	for _, u := range []models.User{alice, bob} {
		friends := doRequest(t, app, http.MethodGet, "/api/friends", signTestToken(u.ID), nil)
		var list []models.User
		decodeBody(t, friends, &list)
		if len(list) != 0 {
			t.Fatalf("expected empty friend list for %s after unfriend, got %d", u.Username, len(list))
		}
	}

	again := doRequest(t, app, http.MethodDelete,
		fmt.Sprintf("/api/friends/%d", alice.ID), signTestToken(bob.ID), nil)
	if again.Code != http.StatusNotFound {
		t.Fatalf("expected 404 unfriending twice, got %d", again.Code)
	}
}
