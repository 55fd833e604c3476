package schema

import "github.com/goliatone/go-formsync/pkg/model"

// The built-in catalog. Every encoding and removal choice below is part of
// the backend's update contract; the inconsistency between JSON id lists
// (consultancy, university, college) and repeated slug entries (event) is
// the backend's, and is kept as-is. Fields wrapped in resend are reset by the
// admin update endpoint when absent, so partial updates always carry them.

var consultancy = model.EntitySchema{
	Entity:     "consultancy",
	SlugSource: "name",
	Fields: []model.Field{
		required(text("name")),
		text("slug"),
		required(text("address")),
		number("latitude"),
		number("longitude"),
		date("establishment_date"),
		text("website"),
		text("email"),
		text("phone"),
		text("google_map_url"),
		integer("priority"),
		rich("about"),
		rich("services"),
		boolean("moe_certified"),
		boolean("has_branches"),
		boolean("is_verified"),
		file("logo"),
		file("cover_photo"),
		file("brochure"),
		resend(ids("districts", "district")),
		resend(ids("study_abroad_destinations", "destination")),
		resend(ids("test_preparation", "exam")),
		resend(ids("partner_universities", "university")),
		resend(branches()),
		gallery(model.PolicyTrackDeletions),
	},
}

var university = model.EntitySchema{
	Entity:     "university",
	SlugSource: "name",
	Fields: []model.Field{
		required(text("name")),
		text("slug"),
		required(text("country")),
		required(text("address")),
		required(text("email")),
		required(text("phone")),
		required(enum("type", "private", "public")),
		text("website"),
		text("map_coordinate"),
		text("tuition_fees"),
		text("qs_world_ranking"),
		integer("priority"),
		rich("eligibility"),
		rich("facilities_features"),
		rich("scholarship"),
		rich("about"),
		rich("faqs"),
		boolean("is_verified"),
		clearable("logo"),
		clearable("cover_photo"),
		clearable("brochure"),
		resend(ids("disciplines", "discipline")),
		ids("consultancies_to_apply", "consultancy"),
	},
}

var college = model.EntitySchema{
	Entity:     "college",
	SlugSource: "name",
	Fields: []model.Field{
		required(text("name")),
		text("slug"),
		required(text("address")),
		number("latitude"),
		number("longitude"),
		date("establishment_date"),
		text("website"),
		text("email"),
		text("phone"),
		text("google_map_url"),
		integer("priority"),
		rich("about"),
		rich("services"),
		boolean("moe_certified"),
		boolean("has_branches"),
		boolean("verified"),
		file("logo"),
		file("cover_photo"),
		file("brochure"),
		resend(ids("districts", "district")),
		resend(ids("study_abroad_destinations", "destination")),
		resend(ids("affiliated_universities", "university")),
		resend(branches()),
		gallery(model.PolicyResendExisting),
	},
}

var course = model.EntitySchema{
	Entity:     "course",
	SlugSource: "name",
	Fields: []model.Field{
		required(text("name")),
		text("slug"),
		text("abbreviation"),
		text("duration"),
		text("level"),
		text("fee"),
		rich("short_description"),
		rich("eligibility"),
		rich("course_structure"),
		rich("job_prospects"),
		rich("scholarship"),
		rich("features"),
		ref("university", "university", "university"),
		ref("destination", "destination", "destination"),
		ids("disciplines", "discipline"),
		clearable("icon"),
		clearable("cover_image"),
	},
}

var event = model.EntitySchema{
	Entity:     "event",
	SlugSource: "name",
	Fields: []model.Field{
		required(text("name")),
		text("slug"),
		required(date("date")),
		text("duration"),
		text("time"),
		required(enum("event_type", "physical", "online", "hybrid")),
		required(enum("registration_type", "free", "paid")),
		number("price"),
		text("location"),
		text("registration_link"),
		integer("priority"),
		rich("description"),
		flattened("organizer_slug", "organizer.slug"),
		flattened("organizer_type", "organizer.type"),
		file("featured_image"),
		slugs("targeted_destinations", "destination"),
		slugs("related_universities", "university"),
		slugs("related_consultancies", "consultancy"),
	},
}

var destination = model.EntitySchema{
	Entity:     "destination",
	SlugSource: "title",
	Fields: []model.Field{
		required(text("title")),
		text("slug"),
		rich("why_choose"),
		rich("requirements"),
		rich("documents_required"),
		rich("scholarships"),
		rich("more_information"),
		rich("faqs"),
		rich("other_destinations"),
		integer("priority"),
		clearable("country_logo"),
		clearable("cover_page"),
		ids("courses_to_study", "course"),
		ids("universities", "university"),
		ids("consultancies", "consultancy"),
	},
}

var exam = model.EntitySchema{
	Entity:     "exam",
	SlugSource: "name",
	Fields: []model.Field{
		required(text("name")),
		text("slug"),
		required(enum("type", "english_proficiency", "standardized_test", "other")),
		number("exam_fee"),
		rich("short_description"),
		rich("exam_centers"),
		rich("about"),
		clearable("icon"),
		ids("preparation_classes", "consultancy"),
		ids("similar_exams", "exam"),
	},
}

var scholarship = model.EntitySchema{
	Entity:     "scholarship",
	SlugSource: "title",
	Fields: []model.Field{
		required(text("title")),
		text("slug"),
		required(text("by")),
		ref("destination", "destination_id", "destination"),
		date("published_date"),
		date("active_from"),
		date("active_to"),
		boolean("is_published"),
		enum("study_level", "undergraduate", "postgraduate", "phd", "diploma"),
		rich("detail"),
		clearable("featured_image"),
	},
}

var news = model.EntitySchema{
	Entity:     "news",
	SlugSource: "title",
	Fields: []model.Field{
		required(text("title")),
		text("slug"),
		ref("category", "category_id", "news-category"),
		rich("detail"),
		boolean("is_published"),
		integer("priority"),
		clearable("featured_image"),
	},
}

var blog = model.EntitySchema{
	Entity:     "blog",
	SlugSource: "title",
	Fields: []model.Field{
		required(text("title")),
		text("slug"),
		ref("category", "category", "blog-category"),
		rich("content"),
		boolean("is_published"),
		integer("priority"),
		clearable("featured_image"),
	},
}

var featured = model.EntitySchema{
	Entity:     "featured",
	SlugSource: "title",
	Fields: []model.Field{
		required(text("title")),
		text("slug"),
		text("main_title"),
		text("sub_title"),
		text("destination"),
		text("description_top"),
		text("description_bottom"),
		text("api_route"),
		integer("priority"),
		boolean("is_active"),
		text("meta_title"),
		text("meta_description"),
		text("meta_author"),
	},
}

var ad = model.EntitySchema{
	Entity:   "ad",
	Resource: "api/ads",
	Fields: []model.Field{
		required(text("title")),
		required(text("placement")),
		text("redirect_url"),
		boolean("is_active"),
		clearable("desktop_image"),
		clearable("mobile_image"),
	},
}

var district = model.EntitySchema{
	Entity:   "district",
	Resource: "districts",
	Fields:   []model.Field{required(text("name"))},
}

var discipline = model.EntitySchema{
	Entity:   "discipline",
	Resource: "disciplines",
	Fields:   []model.Field{required(text("name"))},
}

func builtins() []model.EntitySchema {
	return []model.EntitySchema{
		consultancy,
		university,
		college,
		course,
		event,
		destination,
		exam,
		scholarship,
		news,
		blog,
		featured,
		ad,
		district,
		discipline,
	}
}
