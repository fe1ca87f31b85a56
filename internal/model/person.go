package model

import "time"

// Person is a simulated agent.
type Person struct {
	ID   PersonID `json:"id"`
	Name string   `json:"name"`
}

// PersonIdentity is free-form text describing who a person is. The most
// recent one by CreatedAt is current.
type PersonIdentity struct {
	ID        IdentityID `json:"id"`
	PersonID  PersonID   `json:"person_id"`
	Identity  string     `json:"identity"`
	CreatedAt time.Time  `json:"created_at"`
}

// StateOfMind is free-form text describing a person's disposition. The most
// recent one by CreatedAt is current.
type StateOfMind struct {
	ID        StateOfMindID `json:"id"`
	PersonID  PersonID      `json:"person_id"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"created_at"`
}
