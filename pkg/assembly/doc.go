// Package assembly defines the rigkit data model: nodes, members, derived
// joints, constraints, actuation profiles and loads, together with the
// vector and rotation math they are built on.
//
// Nodes and members are produced once by a layout pass and never mutated.
// Joints are derived from the complete member set, and constraints,
// profiles and loads attach after joints are final.
package assembly
