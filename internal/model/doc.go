// Package model provides the IK solver handle that the rest of the system
// treats as an opaque capability: it can be built from a hyperparameter
// record and a robot, it can load a weight file, and it can report its
// parameter count.
//
// The network itself is not evaluated here. Weights are kept as an opaque
// blob together with their SHA-256 digest so that checkpoints and resolved
// artifacts can be identified and compared.
package model
