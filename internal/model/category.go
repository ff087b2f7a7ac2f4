package model

// Category is a simple reference table entry items can point to.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Brand is a simple reference table entry items can point to.
type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
