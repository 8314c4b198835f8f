// Package robot is a catalog of the kinematic robots models can be trained
// for. Kinematics are not modelled here; a Robot only carries what the rest
// of the system needs to size a model and label its output.
package robot

import (
	"fmt"
	"sort"
	"strings"
)

// Robot identifies a kinematic chain.
type Robot struct {
	Name string
	// NDofs is the number of actuated joints, i.e. the dimension of an IK solution.
	NDofs int
	// EndEffector is the name of the link whose pose is solved for.
	EndEffector string
}

// NotFoundError means no robot is registered under Name.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("robot %q not found in catalog; known robots: %s", e.Name, strings.Join(Names(), ", "))
}

var catalog = map[string]Robot{
	"atlas":      {Name: "atlas", NDofs: 12, EndEffector: "r_hand"},
	"atlas_arm":  {Name: "atlas_arm", NDofs: 6, EndEffector: "r_hand"},
	"baxter":     {Name: "baxter", NDofs: 7, EndEffector: "left_hand"},
	"fetch":      {Name: "fetch", NDofs: 8, EndEffector: "gripper_link"},
	"fetch_arm":  {Name: "fetch_arm", NDofs: 7, EndEffector: "gripper_link"},
	"iiwa7":      {Name: "iiwa7", NDofs: 7, EndEffector: "iiwa_link_ee"},
	"panda_arm":  {Name: "panda_arm", NDofs: 7, EndEffector: "panda_hand"},
	"robosimian": {Name: "robosimian", NDofs: 7, EndEffector: "limb1_link7"},
	"robot_x":    {Name: "robot_x", NDofs: 6, EndEffector: "tool0"},
	"ur5":        {Name: "ur5", NDofs: 6, EndEffector: "tool0"},
	"valkyrie":   {Name: "valkyrie", NDofs: 7, EndEffector: "rightPalm"},
}

// Lookup returns the robot registered under name.
func Lookup(name string) (Robot, error) {
	r, ok := catalog[name]
	if !ok {
		return Robot{}, NotFoundError{Name: name}
	}
	return r, nil
}

// Names returns the names of all catalogued robots, sorted.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
