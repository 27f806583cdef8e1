package vatom

// Payload paths inside a vatom object
const (
	PathProperties        = "vAtom::vAtomType"
	PathParentID          = PathProperties + ".parent_id"
	PathOwner             = PathProperties + ".owner"
	PathTemplate          = PathProperties + ".template"
	PathTemplateVariation = PathProperties + ".template_variation"
	PathTitle             = PathProperties + ".title"
	PathDescription       = PathProperties + ".description"
	PathCategory          = PathProperties + ".category"
	PathDropped           = PathProperties + ".dropped"
	PathTransferable      = PathProperties + ".transferable"
	PathAcquirable        = PathProperties + ".acquirable"
	PathInContract        = PathProperties + ".in_contract"
	PathCoordinates       = PathProperties + ".geo_pos.coordinates"
	PathSync              = "sync"
	PathPrivate           = "private"
	PathWhenCreated       = "when_created"
	PathWhenModified      = "when_modified"
)

// RootParentID is the parent id of a vatom that is not inside a folder
const RootParentID = "."

// actionSeparator splits an action name into template and action
const actionSeparator = "::Action::"
