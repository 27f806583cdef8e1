package datapool

import (
	"fmt"

	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/domain/regions/children"
	"github.com/GriffinCanCode/vatomsync/internal/domain/regions/geopos"
	"github.com/GriffinCanCode/vatomsync/internal/domain/regions/inventory"
	"github.com/GriffinCanCode/vatomsync/internal/domain/regions/vatoms"
	"github.com/GriffinCanCode/vatomsync/internal/domain/session"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

func registerDefaults(p *Pool) {
	p.factories[inventory.Kind] = newInventory
	p.factories[vatoms.Kind] = newVatoms
	p.factories[children.Kind] = newChildren
	p.factories[geopos.Kind] = newGeoPos
}

func currentUser(deps Deps) (string, error) {
	if deps.Sessions == nil {
		return "", session.ErrNoSession
	}
	info, err := deps.Sessions.Current()
	if err != nil {
		return "", err
	}
	return info.UserID, nil
}

func newInventory(deps Deps, descriptor any, opts region.Options) (*region.Region, error) {
	userID, err := currentUser(deps)
	if err != nil {
		return nil, err
	}
	switch d := descriptor.(type) {
	case nil:
	case string:
		if d != "" && d != userID {
			return nil, fmt.Errorf("%w: inventory of %s while %s is signed in", ErrBadDescriptor, d, userID)
		}
	default:
		return nil, fmt.Errorf("%w: inventory takes a user id, got %T", ErrBadDescriptor, descriptor)
	}
	return inventory.New(deps.API, userID, inventory.Options{Region: opts, Tuning: deps.Inventory})
}

func newVatoms(deps Deps, descriptor any, opts region.Options) (*region.Region, error) {
	ids, ok := descriptor.([]string)
	if !ok {
		return nil, fmt.Errorf("%w: ids takes []string, got %T", ErrBadDescriptor, descriptor)
	}
	return vatoms.New(deps.API, ids, opts)
}

func newChildren(deps Deps, descriptor any, opts region.Options) (*region.Region, error) {
	parent, ok := descriptor.(string)
	if !ok {
		return nil, fmt.Errorf("%w: children takes a parent id, got %T", ErrBadDescriptor, descriptor)
	}
	return children.New(deps.API, parent, opts), nil
}

func newGeoPos(deps Deps, descriptor any, opts region.Options) (*region.Region, error) {
	var box types.BoundingBox
	switch d := descriptor.(type) {
	case types.BoundingBox:
		box = d
	case *types.BoundingBox:
		if d == nil {
			return nil, fmt.Errorf("%w: nil bounding box", ErrBadDescriptor)
		}
		box = *d
	default:
		return nil, fmt.Errorf("%w: geopos takes a bounding box, got %T", ErrBadDescriptor, descriptor)
	}

	userID, _ := currentUser(deps)
	return geopos.New(deps.API, box, geopos.Options{Region: opts, UserID: userID, Sender: deps.Sender})
}
