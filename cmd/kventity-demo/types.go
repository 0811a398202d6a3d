package main

//go:generate go run github.com/MrWong99/kventity/cmd/kventity-gen -src types.go -typeprefix demo -components UserExtend -relations FriendRelation

// UserInfo is the demo's primary component: two indexed fields and one
// payload-only field.
type UserInfo struct {
	Name  string `json:"name" kventity:"index"`
	Age   int32  `json:"age" kventity:"index"`
	Email string `json:"email"`
}

// UserExtend is a second, unindexed component used to show bundled attach.
type UserExtend struct {
	Extend string `json:"extend"`
}

// FriendRelation is the payload of a friendship edge.
type FriendRelation struct {
	Fav int64 `json:"fav"`
}
