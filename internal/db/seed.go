package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedLocations = []string{"Taipei", "New Taipei", "Taichung", "Kaohsiung"}

// SeedTestData resets the database and populates it with demo data.
//
// Behavior:
//  1. Clears profiles, photos, decisions, matches and messages.
//  2. Creates 20 profiles (10 male, 10 female) aged 22-35 with hashed
//     passwords baked into the email-side account fixture.
//  3. Generates ~200 decisions with ~70% likes; every 3rd pair gets a
//     guaranteed mutual like plus the corresponding match row.
//  4. Drops a short conversation into the first seeded match.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(database *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"messages", "matches", "decisions", "photos", "profiles"} {
		if err := database.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch database.Dialector.Name() {
	case "mysql":
		database.Exec("ALTER TABLE profiles AUTO_INCREMENT = 1")
		database.Exec("ALTER TABLE matches AUTO_INCREMENT = 1")
		database.Exec("ALTER TABLE messages AUTO_INCREMENT = 1")
	case "sqlite":
		database.Exec("DELETE FROM sqlite_sequence WHERE name IN ('profiles', 'matches', 'messages')")
	}

	log.Println("Cleared existing data")

	// --- Seed profiles (10 male, 10 female) ---
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	for i := 1; i <= 20; i++ {
		gender := "male"
		if i > 10 {
			gender = "female"
		}

		age := 22 + r.Intn(14)
		profile := Profile{
			Nickname:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Birthdate:    time.Now().UTC().AddDate(-age, 0, -r.Intn(300)),
			Gender:       gender,
			Location:     seedLocations[r.Intn(len(seedLocations))],
			HeightCM:     155 + r.Intn(40),
			Bio:          "Demo profile",
			Active:       true,
		}
		if err := database.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}

		photo := Photo{
			ProfileID: profile.ID,
			URL:       fmt.Sprintf("https://photos.example.com/%d/0.jpg", profile.ID),
			Order:     0,
		}
		if err := database.Create(&photo).Error; err != nil {
			return fmt.Errorf("failed to seed photo: %w", err)
		}
	}
	log.Println("Seeded 20 profiles.")

	var profiles []Profile
	if err := database.Order("id ASC").Find(&profiles).Error; err != nil {
		return err
	}

	// --- Seed decisions (~200), guaranteed mutual every 3rd pair ---
	seen := make(map[[2]uint64]DecisionKind)
	insert := func(actor, target uint64, kind DecisionKind) error {
		key := [2]uint64{actor, target}
		if _, ok := seen[key]; ok {
			return nil // decisions are insert-once
		}
		seen[key] = kind
		return database.Create(&Decision{ActorID: actor, TargetID: target, Kind: kind}).Error
	}
	liked := func(actor, target uint64) bool {
		return seen[[2]uint64{actor, target}].Liked()
	}

	counter := 0
	var firstMatch *Match
	for _, actor := range profiles {
		for j := 0; j < 12; j++ {
			target := profiles[r.Intn(len(profiles))]
			if actor.ID == target.ID || actor.Gender == target.Gender {
				continue
			}

			kind := KindPass
			if r.Intn(100) < 70 {
				kind = KindLike
				if r.Intn(10) == 0 {
					kind = KindSuperLike
				}
			}

			// guarantee mutual likes every 3rd pair
			if counter%3 == 0 {
				kind = KindLike
				if err := insert(target.ID, actor.ID, KindLike); err != nil {
					return fmt.Errorf("failed to seed reciprocal decision: %w", err)
				}
			}

			if err := insert(actor.ID, target.ID, kind); err != nil {
				return fmt.Errorf("failed to seed decision: %w", err)
			}

			if counter%3 == 0 && liked(actor.ID, target.ID) && liked(target.ID, actor.ID) {
				a, b := CanonicalPair(actor.ID, target.ID)
				match := Match{UserAID: a, UserBID: b, Active: true}
				if err := database.Where("user_a_id = ? AND user_b_id = ?", a, b).
					FirstOrCreate(&match).Error; err != nil {
					return fmt.Errorf("failed to seed match: %w", err)
				}
				if firstMatch == nil {
					firstMatch = &match
				}
			}

			counter++
		}
	}

	// --- Seed a short conversation in the first match ---
	if firstMatch != nil {
		lines := []struct {
			sender uint64
			body   string
		}{
			{firstMatch.UserAID, "Hey! We matched :)"},
			{firstMatch.UserBID, "Hi! Nice to meet you"},
			{firstMatch.UserAID, "Free for coffee this weekend?"},
		}
		for i, l := range lines {
			msg := Message{
				MatchID:     firstMatch.ID,
				SenderID:    l.sender,
				Body:        l.body,
				ClientToken: fmt.Sprintf("seed-%d-%d", firstMatch.ID, i),
			}
			if err := database.Create(&msg).Error; err != nil {
				return fmt.Errorf("failed to seed message: %w", err)
			}
		}
	}

	return nil
}

// SeedMinimalTestData wipes the DB and inserts a small deterministic dataset.
func SeedMinimalTestData(database *gorm.DB) error {
	// Clear
	for _, table := range []string{"messages", "matches", "decisions", "photos", "profiles"} {
		if err := database.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	profiles := []Profile{
		{ID: 1, Nickname: "user1", Email: "u1@test.com", Gender: "male", Location: "Taipei", Birthdate: now.AddDate(-28, 0, 0), Active: true},
		{ID: 2, Nickname: "user2", Email: "u2@test.com", Gender: "female", Location: "Taipei", Birthdate: now.AddDate(-26, 0, 0), Active: true},
		{ID: 3, Nickname: "user3", Email: "u3@test.com", Gender: "female", Location: "Taichung", Birthdate: now.AddDate(-31, 0, 0), Active: true},
	}
	if err := database.Create(&profiles).Error; err != nil {
		return err
	}

	decisions := []Decision{
		{ActorID: 1, TargetID: 2, Kind: KindLike},  // user1 → user2 (like)
		{ActorID: 2, TargetID: 1, Kind: KindLike},  // user2 → user1 (like) → mutual
		{ActorID: 3, TargetID: 1, Kind: KindLike},  // user3 → user1 (like, non-mutual)
		{ActorID: 1, TargetID: 3, Kind: KindPass},  // user1 → user3 (pass)
	}
	if err := database.Create(&decisions).Error; err != nil {
		return err
	}

	return nil
}
