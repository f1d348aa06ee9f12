package domain

// Topic is one of the closed set of maths subjects the service teaches.
// The set is fixed by the embedded content catalog at build time.
type Topic string

const (
	TopicAddition       Topic = "addition"
	TopicSubtraction    Topic = "subtraction"
	TopicMultiplication Topic = "multiplication"
	TopicDivision       Topic = "division"
)
