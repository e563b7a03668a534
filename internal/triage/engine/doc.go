// Package engine walks a single symptom's question graph. An Engine starts at
// the symptom's entry question, follows the yes/no edge chosen by each answer
// and stops at the first terminal edge. Graphs are validated at construction,
// so every walk ends within len(questions) answers.
package engine
